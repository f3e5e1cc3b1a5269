package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// allBanksLabel is what the legacy collector wrote when no bank was selected.
const allBanksLabel = "все"

// ReadLegacyCSV imports files written by the legacy collector. Only the
// timestamp, prices, names, amount and bank columns are trusted; hour,
// weekday and spread are re-derived in loc. Rows without a positive price on
// either side are counted in skipped.
func ReadLegacyCSV(r io.Reader, loc *time.Location) (samples []Sample, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(CSVHeader)
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read csv line %d: %w", line, err)
		}

		in, err := legacyInput(record)
		if err != nil {
			return nil, skipped, fmt.Errorf("parse csv line %d: %w", line, err)
		}
		sample, ok := NewSample(in, loc)
		if !ok {
			skipped++
			continue
		}
		samples = append(samples, sample)
	}
	return samples, skipped, nil
}

func legacyInput(record []string) (SampleInput, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(record[0]))
	if err != nil {
		return SampleInput{}, fmt.Errorf("timestamp: %w", err)
	}
	buy, err := decimal.NewFromString(strings.TrimSpace(record[5]))
	if err != nil {
		return SampleInput{}, fmt.Errorf("buyPrice: %w", err)
	}
	sell, err := decimal.NewFromString(strings.TrimSpace(record[6]))
	if err != nil {
		return SampleInput{}, fmt.Errorf("sellPrice: %w", err)
	}
	minAmount, err := strconv.ParseInt(strings.TrimSpace(record[11]), 10, 64)
	if err != nil {
		return SampleInput{}, fmt.Errorf("minAmount: %w", err)
	}

	bank := strings.TrimSpace(record[12])
	if bank == allBanksLabel {
		bank = ""
	}

	return SampleInput{
		Timestamp:  ts,
		BuyPrice:   buy,
		SellPrice:  sell,
		BuyerName:  record[9],
		SellerName: record[10],
		MinAmount:  minAmount,
		Bank:       bank,
	}, nil
}
