package templatetags

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Warning reasons.
const (
	reasonMissingSettings = "missing_settings"
	reasonMissingImage    = "missing_image"
)

var tagWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "odmhub_template_tag_warnings_total",
	Help: "Template tags that fell back to an empty result",
}, []string{"tag", "reason"})
