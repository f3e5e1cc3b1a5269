package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testSamples() []Sample {
	loc := time.FixedZone("EET", 2*3600)
	base := time.Date(2025, 3, 3, 8, 59, 30, 123456789, time.UTC)
	var out []Sample
	inputs := []SampleInput{
		{BuyPrice: decimal.RequireFromString("41.25"), SellPrice: decimal.RequireFromString("41.80"), BuyerName: "alpha", SellerName: "beta, \"quoted\"", MinAmount: 5000, Bank: "mono"},
		{BuyPrice: decimal.RequireFromString("41.30"), SellPrice: decimal.Zero, BuyerName: "gamma", MinAmount: 5000},
		{BuyPrice: decimal.Zero, SellPrice: decimal.RequireFromString("41.95"), SellerName: "delta", MinAmount: 10000, Bank: "privat"},
	}
	for i, in := range inputs {
		in.Timestamp = base.Add(time.Duration(i) * 30 * time.Second)
		s, ok := NewSample(in, loc)
		if !ok {
			panic("test sample rejected")
		}
		out = append(out, s)
	}
	return out
}

func assertSamplesEqual(t *testing.T, want, got []Sample) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if !want[i].Equal(got[i]) {
			t.Fatalf("sample %d differs:\nwant %+v\ngot  %+v", i, want[i], got[i])
		}
	}
}

func TestNewSampleDerivesFields(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)
	ts := time.Date(2025, 3, 2, 22, 30, 0, 0, time.UTC) // Monday 00:30 local
	s, ok := NewSample(SampleInput{
		Timestamp: ts,
		BuyPrice:  decimal.RequireFromString("40"),
		SellPrice: decimal.RequireFromString("41"),
	}, loc)
	if !ok {
		t.Fatal("sample rejected")
	}
	if s.Hour != 0 || s.Weekday != time.Monday {
		t.Fatalf("expected local hour 0 Monday, got %d %s", s.Hour, s.Weekday)
	}
	if !s.Spread.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected spread %s", s.Spread)
	}
	if !s.SpreadPercent.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected spread percent %s", s.SpreadPercent)
	}
}

func TestNewSampleGuards(t *testing.T) {
	if _, ok := NewSample(SampleInput{Timestamp: time.Now()}, nil); ok {
		t.Fatal("sample without prices must be rejected")
	}

	s, ok := NewSample(SampleInput{Timestamp: time.Now(), SellPrice: decimal.NewFromInt(41)}, nil)
	if !ok {
		t.Fatal("one-sided sample must be accepted")
	}
	if !s.SpreadPercent.IsZero() {
		t.Fatalf("spread percent without buy price must be zero, got %s", s.SpreadPercent)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	samples := testSamples()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, samples); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if !strings.HasPrefix(buf.String(), strings.Join(CSVHeader, ",")) {
		t.Fatal("header missing")
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	assertSamplesEqual(t, samples, got)
}

func TestReadCSVRejectsGarbage(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a,b\n1,2\n")); err == nil {
		t.Fatal("wrong column count should error")
	}
	if got, err := ReadCSV(strings.NewReader("")); err != nil || len(got) != 0 {
		t.Fatalf("empty input should be empty history, got %v %v", got, err)
	}
}

func TestFileGatewayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "price_data.csv")
	gw := NewFileGateway(path)
	ctx := context.Background()

	empty, err := gw.LoadAll(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing file should load empty: %v %v", empty, err)
	}

	samples := testSamples()
	if err := gw.SaveAll(ctx, samples); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := gw.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamplesEqual(t, samples, loaded)

	// save(load()) then a fresh load reproduces the sequence
	if err := gw.SaveAll(ctx, loaded); err != nil {
		t.Fatalf("resave: %v", err)
	}
	reloaded, err := NewFileGateway(path).LoadAll(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	assertSamplesEqual(t, samples, reloaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileGatewayReplacesSnapshot(t *testing.T) {
	gw := NewFileGateway(filepath.Join(t.TempDir(), "snap.csv"))
	ctx := context.Background()
	samples := testSamples()

	if err := gw.SaveAll(ctx, samples); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := gw.SaveAll(ctx, samples[:1]); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := gw.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamplesEqual(t, samples[:1], loaded)
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	samples := testSamples()
	data, err := encodeSnapshot(samples)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertSamplesEqual(t, samples, got)

	if _, err := decodeSnapshot([]byte(`{"version":99,"samples":[]}`)); err == nil {
		t.Fatal("unknown version should error")
	}
}

func TestMemoryGateway(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()
	samples := testSamples()
	if err := gw.SaveAll(ctx, samples); err != nil {
		t.Fatalf("save: %v", err)
	}
	samples[0].BuyerName = "mutated"

	got, _ := gw.LoadAll(ctx)
	if got[0].BuyerName == "mutated" {
		t.Fatal("gateway must copy on save")
	}
	if gw.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", gw.Saves())
	}
}

func TestStoreNotConfigured(t *testing.T) {
	var s *Store
	if _, err := s.LoadAll(context.Background()); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := s.SaveAll(context.Background(), nil); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestReadLegacyCSV(t *testing.T) {
	legacy := strings.Join([]string{
		"timestamp,date,time,hour,dayOfWeek,buyPrice,sellPrice,spread,spreadPercent,buyerName,sellerName,minAmount,selectedBank",
		`2025-03-03T07:00:00.000Z,Mon Mar 03 2025,09:00:00,9,понедельник,41.25,41.80,0.55,1.33,"alpha","beta",5000,mono`,
		`2025-03-03T07:00:30.000Z,Mon Mar 03 2025,09:00:30,9,понедельник,0.00,0.00,0.00,0,"","",5000,все`,
		`2025-03-03T07:01:00.000Z,Mon Mar 03 2025,09:01:00,9,понедельник,41.30,0.00,-41.30,-100.00,"gamma","",5000,все`,
	}, "\n") + "\n"

	loc := time.FixedZone("EET", 2*3600)
	samples, skipped, err := ReadLegacyCSV(strings.NewReader(legacy), loc)
	if err != nil {
		t.Fatalf("read legacy csv: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", skipped)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	first := samples[0]
	if first.Hour != 9 || first.Weekday != time.Monday || first.BuyerName != "alpha" || first.Bank != "mono" {
		t.Fatalf("unexpected first sample: %+v", first)
	}
	if !first.Spread.Equal(decimal.RequireFromString("0.55")) {
		t.Fatalf("spread should be re-derived, got %s", first.Spread)
	}
	if samples[1].Bank != "" {
		t.Fatalf("all-banks label should map to empty bank, got %q", samples[1].Bank)
	}
}
