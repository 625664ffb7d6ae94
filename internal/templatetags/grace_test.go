package templatetags

import (
	"testing"
	"time"

	"github.com/odmhub/odmhub/internal/config"
	"github.com/odmhub/odmhub/internal/i18n"
	"golang.org/x/text/language"
)

type fixedDeadline struct {
	at *time.Time
}

func (f fixedDeadline) QuotaDeadline() *time.Time { return f.at }

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newGraceTags(hours int) *Tags {
	cfg := config.UIConfig{GracePeriodHours: hours, DefaultLanguage: "en"}
	return New(cfg, i18n.NewCatalog("en"), nil).WithClock(func() time.Time { return fixedNow })
}

func deadlineIn(d time.Duration) *Context {
	at := fixedNow.Add(d)
	return NewContext(nil, fixedDeadline{at: &at}, language.English)
}

func TestGraceBucketFor(t *testing.T) {
	tests := []struct {
		name       string
		remaining  time.Duration
		wantBucket GraceBucket
		wantN      int
	}{
		{"three days", 3 * day, BucketDays, 3},
		{"exactly two days", 2 * day, BucketDays, 2},
		{"just under two days", 2*day - time.Second, BucketHours, 47},
		{"exactly two hours", 2 * time.Hour, BucketHours, 2},
		{"ninety minutes", 90 * time.Minute, BucketMinutes, 90},
		{"just over a second", time.Second + time.Millisecond, BucketMinutes, 0},
		{"exactly one second", time.Second, BucketVerySoon, 0},
		{"zero", 0, BucketVerySoon, 0},
		{"past deadline", -time.Hour, BucketVerySoon, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, n := GraceBucketFor(tt.remaining)
			if bucket != tt.wantBucket || n != tt.wantN {
				t.Fatalf("GraceBucketFor(%v) = (%v, %d), want (%v, %d)",
					tt.remaining, bucket, n, tt.wantBucket, tt.wantN)
			}
		})
	}
}

func TestQuotaExceededGracePeriod(t *testing.T) {
	tags := newGraceTags(8)

	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{"three days", deadlineIn(3 * day), "in 3 days"},
		{"large counts are not digit grouped", deadlineIn(1000 * day), "in 1000 days"},
		{"ninety minutes", deadlineIn(90 * time.Minute), "in 90 minutes"},
		{"five hours", deadlineIn(5*time.Hour + 30*time.Minute), "in 5 hours"},
		{"deadline now", deadlineIn(0), "very soon"},
		{"deadline passed", deadlineIn(-day), "very soon"},
		{"no deadline uses grace period", NewContext(nil, fixedDeadline{}, language.English), "in 8 hours"},
		{"no user uses grace period", &Context{}, "in 8 hours"},
		{"nil context uses grace period", nil, "in 8 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tags.QuotaExceededGracePeriod(tt.ctx); got != tt.want {
				t.Fatalf("QuotaExceededGracePeriod = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuotaExceededGracePeriodLongDefault(t *testing.T) {
	if got := newGraceTags(72).QuotaExceededGracePeriod(nil); got != "in 3 days" {
		t.Fatalf("expected 72h grace period to read in 3 days, got %q", got)
	}
	if got := newGraceTags(0).QuotaExceededGracePeriod(nil); got != "very soon" {
		t.Fatalf("expected zero grace period to read very soon, got %q", got)
	}
}

func TestQuotaExceededGracePeriodTranslated(t *testing.T) {
	tags := newGraceTags(8)
	at := fixedNow.Add(4 * day)
	ctx := NewContext(nil, fixedDeadline{at: &at}, language.Italian)

	if got := tags.QuotaExceededGracePeriod(ctx); got != "tra 4 giorni" {
		t.Fatalf("expected italian phrase, got %q", got)
	}
}
