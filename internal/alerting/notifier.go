package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of a spread alert.
type Notification struct {
	SampledAt     time.Time
	BuyPrice      decimal.Decimal
	SellPrice     decimal.Decimal
	Spread        decimal.Decimal
	SpreadPercent decimal.Decimal
	ThresholdPct  decimal.Decimal
	BuyerName     string
	SellerName    string
	MinAmount     int64
	Bank          string
	AdditionalMsg string
}

// Notifier delivers alert notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered alert text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false: %s", result.Description)
		}
	}

	n.logger.Info().Time("sampled_at", note.SampledAt).
		Str("spread_pct", note.SpreadPercent.StringFixed(2)).
		Msg("alert sent (telegram)")
	return nil
}

// LogNotifier records alerts in the log only. Used when no channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify writes the alert as a warning.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().Time("sampled_at", note.SampledAt).
		Str("buy", note.BuyPrice.String()).
		Str("sell", note.SellPrice.String()).
		Str("spread_pct", note.SpreadPercent.StringFixed(2)).
		Str("threshold_pct", note.ThresholdPct.String()).
		Msg("spread alert")
	return nil
}

// RenderMessage formats the alert body.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[USDT/UAH P2P spread alert]\n")
	builder.WriteString(fmt.Sprintf("Time: %s\n", note.SampledAt.Format("2006-01-02 15:04:05 MST")))
	builder.WriteString(fmt.Sprintf("Buy: %s UAH (%s)\n", note.BuyPrice.StringFixed(2), note.BuyerName))
	builder.WriteString(fmt.Sprintf("Sell: %s UAH (%s)\n", note.SellPrice.StringFixed(2), note.SellerName))
	builder.WriteString(fmt.Sprintf("Spread: %s UAH, %s%% (threshold %s%%)\n",
		note.Spread.StringFixed(2), note.SpreadPercent.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	if note.MinAmount > 0 {
		builder.WriteString(fmt.Sprintf("Min amount: %d UAH\n", note.MinAmount))
	}
	if note.Bank != "" {
		builder.WriteString(fmt.Sprintf("Bank: %s\n", note.Bank))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
