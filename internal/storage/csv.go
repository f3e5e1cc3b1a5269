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

// CSVHeader is the column layout shared by the file gateway and exports.
var CSVHeader = []string{
	"timestamp",
	"date",
	"time",
	"hour",
	"dayOfWeek",
	"buyPrice",
	"sellPrice",
	"spread",
	"spreadPercent",
	"buyerName",
	"sellerName",
	"minAmount",
	"selectedBank",
}

// WriteCSV encodes samples with a header row.
func WriteCSV(w io.Writer, samples []Sample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for _, s := range samples {
		record := []string{
			s.Timestamp.Format(time.RFC3339Nano),
			s.Timestamp.Format("2006-01-02"),
			s.Timestamp.Format("15:04:05"),
			strconv.Itoa(s.Hour),
			s.Weekday.String(),
			s.BuyPrice.String(),
			s.SellPrice.String(),
			s.Spread.String(),
			s.SpreadPercent.String(),
			s.BuyerName,
			s.SellerName,
			strconv.FormatInt(s.MinAmount, 10),
			s.Bank,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCSV decodes what WriteCSV produced. The date and time columns are
// informational and ignored.
func ReadCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(CSVHeader)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if header[0] != CSVHeader[0] {
		return nil, fmt.Errorf("unexpected csv header %q", strings.Join(header, ","))
	}

	samples := make([]Sample, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		sample, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("parse csv line %d: %w", line, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func parseRecord(record []string) (Sample, error) {
	ts, err := time.Parse(time.RFC3339Nano, record[0])
	if err != nil {
		return Sample{}, fmt.Errorf("timestamp: %w", err)
	}
	hour, err := strconv.Atoi(record[3])
	if err != nil || hour < 0 || hour > 23 {
		return Sample{}, fmt.Errorf("hour %q out of range", record[3])
	}
	weekday, err := ParseWeekday(record[4])
	if err != nil {
		return Sample{}, err
	}

	var decimals [4]decimal.Decimal
	for i := range decimals {
		decimals[i], err = decimal.NewFromString(record[5+i])
		if err != nil {
			return Sample{}, fmt.Errorf("%s: %w", CSVHeader[5+i], err)
		}
	}

	minAmount, err := strconv.ParseInt(record[11], 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("minAmount: %w", err)
	}

	return Sample{
		Timestamp:     ts,
		Hour:          hour,
		Weekday:       weekday,
		BuyPrice:      decimals[0],
		SellPrice:     decimals[1],
		Spread:        decimals[2],
		SpreadPercent: decimals[3],
		BuyerName:     record[9],
		SellerName:    record[10],
		MinAmount:     minAmount,
		Bank:          record[12],
	}, nil
}

// ParseWeekday accepts English weekday names as produced by time.Weekday.
func ParseWeekday(v string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(v)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", v)
}
