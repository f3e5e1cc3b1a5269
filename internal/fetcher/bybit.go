package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2pwatcher/internal/quote"
)

const (
	bybitOnlinePath   = "/fiat/otc/item/online"
	defaultBybitURL   = "https://api2.bybit.com"
	newUserItemType   = "NEW_USER"
	bybitSideBuy      = "1"
	bybitSideSell     = "0"
	defaultPageSize   = 10
	defaultUserAgent  = "p2pwatcher/1.0"
	maxResponseLength = 4 << 20
)

// BybitOptions parameterise the Bybit P2P adapter.
type BybitOptions struct {
	BaseURL   string
	Token     string
	Currency  string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
	// PaymentMethods maps bank codes (mono, privat, ...) to Bybit payment ids.
	PaymentMethods map[string]string
}

// Bybit fetches advertisements from the Bybit P2P marketplace.
type Bybit struct {
	opts    BybitOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBybit constructs the adapter.
func NewBybit(opts BybitOptions, logger zerolog.Logger) *Bybit {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Token == "" {
		opts.Token = "USDT"
	}
	if opts.Currency == "" {
		opts.Currency = "UAH"
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBybitURL
	}

	return &Bybit{
		opts:    opts,
		logger:  logger.With().Str("component", "bybit_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// BankNames holds display names for the known bank codes.
var BankNames = map[string]string{
	"mono":       "Monobank",
	"privat":     "PrivatBank",
	"oschadbank": "Oschadbank",
}

// SupportsBank reports whether bank maps to a payment id. The empty code
// means all banks and is always supported.
func (b *Bybit) SupportsBank(bank string) bool {
	if bank == "" {
		return true
	}
	_, ok := b.opts.PaymentMethods[strings.ToLower(bank)]
	return ok
}

// FetchSide requests one page of online advertisements for side.
func (b *Bybit) FetchSide(ctx context.Context, side quote.Side, minAmount int64, bank string) ([]quote.OrderBookEntry, error) {
	if minAmount <= 0 {
		return nil, malformed(side, errors.New("min amount must be greater than zero"))
	}

	reqPayload := onlineRequest{
		TokenID:    b.opts.Token,
		CurrencyID: b.opts.Currency,
		Side:       bybitSideBuy,
		Size:       strconv.Itoa(b.opts.PageSize),
		Page:       "1",
		Amount:     strconv.FormatInt(minAmount, 10),
		Payment:    []string{},
	}
	if side == quote.Sell {
		reqPayload.Side = bybitSideSell
	}
	if bank != "" {
		id, ok := b.opts.PaymentMethods[strings.ToLower(bank)]
		if !ok {
			return nil, malformed(side, fmt.Errorf("no payment id configured for bank %q", bank))
		}
		reqPayload.Payment = []string{id}
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, malformed(side, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+bybitOnlinePath, bytes.NewReader(body))
	if err != nil {
		return nil, classify(side, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	started := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classify(side, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLength))
	if err != nil {
		return nil, classify(side, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: KindNetwork, Side: side, Err: parseHTTPError(resp.StatusCode, payload)}
	}

	var res onlineResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, malformed(side, fmt.Errorf("decode response: %w", err))
	}
	if res.RetCode != 0 {
		return nil, malformed(side, fmt.Errorf("bybit ret_code %d: %s", res.RetCode, res.retMessage()))
	}
	if res.Result == nil {
		return nil, malformed(side, errors.New("response has no result"))
	}

	entries := make([]quote.OrderBookEntry, 0, len(res.Result.Items))
	for _, item := range res.Result.Items {
		entries = append(entries, item.entry())
	}

	b.logger.Debug().
		Str("side", side.String()).
		Int("items", len(entries)).
		Dur("took", time.Since(started)).
		Msg("order book side fetched")
	return entries, nil
}

type onlineRequest struct {
	UserID     string   `json:"userId"`
	TokenID    string   `json:"tokenId"`
	CurrencyID string   `json:"currencyId"`
	Payment    []string `json:"payment"`
	Side       string   `json:"side"`
	Size       string   `json:"size"`
	Page       string   `json:"page"`
	Amount     string   `json:"amount"`
	AuthMaker  bool     `json:"authMaker"`
	CanTrade   bool     `json:"canTrade"`
}

type onlineResponse struct {
	RetCode int    `json:"ret_code"`
	RetMsg  string `json:"ret_msg"`
	Msg     string `json:"msg"`
	Result  *struct {
		Count int          `json:"count"`
		Items []onlineItem `json:"items"`
	} `json:"result"`
}

func (r onlineResponse) retMessage() string {
	if r.RetMsg != "" {
		return r.RetMsg
	}
	return r.Msg
}

type onlineItem struct {
	Price    string `json:"price"`
	NickName string `json:"nickName"`
	ItemType string `json:"itemType"`
}

// entry converts the wire item; an unparsable price leaves the entry in
// place with an invalid price so ranks are not shifted.
func (it onlineItem) entry() quote.OrderBookEntry {
	e := quote.OrderBookEntry{
		Counterparty: strings.TrimSpace(it.NickName),
		NewUserOffer: strings.EqualFold(it.ItemType, newUserItemType),
	}
	if price, err := decimal.NewFromString(strings.TrimSpace(it.Price)); err == nil {
		e.Price = decimal.NewNullDecimal(price)
	}
	return e
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr onlineResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if msg := apiErr.retMessage(); msg != "" {
			return fmt.Errorf("bybit api error (%d): %s", status, msg)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("bybit api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("bybit api error (%d)", status)
}

var _ QuoteSource = (*Bybit)(nil)
