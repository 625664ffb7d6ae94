package templatetags

import (
	"strconv"
	"time"

	"github.com/odmhub/odmhub/internal/i18n"
	"golang.org/x/text/language"
)

// GraceBucket is the unit a remaining grace period is reported in.
type GraceBucket int

const (
	BucketVerySoon GraceBucket = iota
	BucketMinutes
	BucketHours
	BucketDays
)

const day = 24 * time.Hour

// GraceBucketFor picks the coarsest unit for the time left and the whole
// number of those units. Negative durations count as zero.
//
//	>= 2 days  -> days
//	>= 2 hours -> hours
//	>  1s      -> minutes
//	otherwise  -> very soon (count 0)
func GraceBucketFor(remaining time.Duration) (GraceBucket, int) {
	if remaining < 0 {
		remaining = 0
	}
	switch {
	case remaining >= 2*day:
		return BucketDays, int(remaining / day)
	case remaining >= 2*time.Hour:
		return BucketHours, int(remaining / time.Hour)
	case remaining > time.Second:
		return BucketMinutes, int(remaining / time.Minute)
	default:
		return BucketVerySoon, 0
	}
}

// QuotaExceededGracePeriod describes when the current user's over-quota
// grace period ends, e.g. "in 3 days". Without a stored deadline the full
// configured grace period is assumed to start now.
func (t *Tags) QuotaExceededGracePeriod(ctx *Context) string {
	now := t.now()
	deadline := now.Add(time.Duration(t.cfg.GracePeriodHours) * time.Hour)
	if d := ctx.QuotaDeadline(); d != nil {
		deadline = *d
	}

	bucket, n := GraceBucketFor(deadline.Sub(now))
	return t.graceMessage(ctx.Language(), bucket, n)
}

func (t *Tags) graceMessage(lang language.Tag, bucket GraceBucket, n int) string {
	if lang == language.Und {
		lang = t.catalog.Fallback()
	}
	switch bucket {
	case BucketDays:
		return t.catalog.Sprintf(lang, i18n.InDays, strconv.Itoa(n))
	case BucketHours:
		return t.catalog.Sprintf(lang, i18n.InHours, strconv.Itoa(n))
	case BucketMinutes:
		return t.catalog.Sprintf(lang, i18n.InMinutes, strconv.Itoa(n))
	default:
		return t.catalog.Sprintf(lang, i18n.VerySoon)
	}
}
