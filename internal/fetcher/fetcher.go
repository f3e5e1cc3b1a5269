package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"

	"p2pwatcher/internal/quote"
)

// QuoteSource returns one side of the P2P order book. Implementations make a
// single attempt per call and surface failures as *FetchError.
type QuoteSource interface {
	FetchSide(ctx context.Context, side quote.Side, minAmount int64, bank string) ([]quote.OrderBookEntry, error)
}

// Kind classifies adapter failures.
type Kind string

const (
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindMalformedResponse Kind = "malformed_response"
)

// FetchError is returned for every failed FetchSide call.
type FetchError struct {
	Kind Kind
	Side quote.Side
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s side (%s): %v", e.Side, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func classify(side quote.Side, err error) *FetchError {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, Side: side, Err: err}
}

func malformed(side quote.Side, err error) *FetchError {
	return &FetchError{Kind: KindMalformedResponse, Side: side, Err: err}
}
