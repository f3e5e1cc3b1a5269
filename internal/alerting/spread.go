package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SpreadAlerter fires a notification when a sample's spread percent reaches
// the threshold, at most once per cooldown.
type SpreadAlerter struct {
	notifier  Notifier
	threshold decimal.Decimal
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

// NewSpreadAlerter returns nil when alerting cannot fire.
func NewSpreadAlerter(notifier Notifier, thresholdPct float64, cooldown time.Duration) *SpreadAlerter {
	if notifier == nil || thresholdPct <= 0 {
		return nil
	}
	return &SpreadAlerter{
		notifier:  notifier,
		threshold: decimal.NewFromFloat(thresholdPct),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Threshold returns the configured spread percent threshold.
func (a *SpreadAlerter) Threshold() decimal.Decimal {
	return a.threshold
}

// Evaluate notifies when note crosses the threshold outside the cooldown.
// sent reports whether a notification was dispatched.
func (a *SpreadAlerter) Evaluate(ctx context.Context, note Notification) (sent bool, err error) {
	if a == nil || note.SpreadPercent.LessThan(a.threshold) {
		return false, nil
	}

	a.mu.Lock()
	now := a.now()
	if !a.lastSent.IsZero() && now.Sub(a.lastSent) < a.cooldown {
		a.mu.Unlock()
		return false, nil
	}
	a.lastSent = now
	a.mu.Unlock()

	note.ThresholdPct = a.threshold
	if err := a.notifier.Notify(ctx, note); err != nil {
		// allow an immediate retry on the next crossing
		a.mu.Lock()
		a.lastSent = time.Time{}
		a.mu.Unlock()
		return false, err
	}
	return true, nil
}
