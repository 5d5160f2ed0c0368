// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
)

// MetricKey names one of the tracked chapter metrics.
type MetricKey string

// Known metric keys.
const (
	MetricReferrals    MetricKey = "referrals"
	MetricVisitors     MetricKey = "visitors"
	MetricAttendance   MetricKey = "attendance"
	MetricTestimonials MetricKey = "testimonials"
	MetricTrainings    MetricKey = "trainings"
	MetricRetention    MetricKey = "retention"
)

// ScalarMetrics lists the progress metrics in display order.
var ScalarMetrics = []MetricKey{ //nolint:gochecknoglobals // fixed metric order
	MetricReferrals,
	MetricVisitors,
	MetricAttendance,
	MetricTestimonials,
	MetricTrainings,
}

// ParseMetricKey normalizes s and reports whether it names a known metric.
func ParseMetricKey(s string) (MetricKey, error) {
	k := MetricKey(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case MetricReferrals, MetricVisitors, MetricAttendance, MetricTestimonials, MetricTrainings, MetricRetention:
		return k, nil
	}
	return "", fmt.Errorf("metric %q: %w", s, ErrUnknownMetric)
}

// IsScalar reports whether k is a progress metric (everything but retention).
func (k MetricKey) IsScalar() bool {
	return k != MetricRetention && k != ""
}

// ProgressMetric is one tracked activity counter against a target.
type ProgressMetric struct {
	Current     int `json:"current" yaml:"current" validate:"gte=0"`
	Target      int `json:"target" yaml:"target" validate:"gt=0"`
	Achievement int `json:"achievement" yaml:"achievement"`
}

// NewProgress builds a progress metric with a derived achievement.
func NewProgress(current, target int) ProgressMetric {
	return ProgressMetric{Current: current, Target: target, Achievement: Achievement(current, target)}
}

// WithCurrent returns a copy with current replaced and achievement re-derived.
func (p ProgressMetric) WithCurrent(current int) ProgressMetric {
	return NewProgress(current, p.Target)
}

// Achievement returns round(current/target*100), rounding halves up.
func Achievement(current, target int) int {
	if target <= 0 {
		return 0
	}
	return int(math.Floor(float64(current)/float64(target)*100 + 0.5))
}

// RetentionMetric tracks membership movement for a chapter.
type RetentionMetric struct {
	Inductions int `json:"inductions" yaml:"inductions" validate:"gte=0"`
	Renewals   int `json:"renewals" yaml:"renewals" validate:"gte=0"`
	Drops      int `json:"drops" yaml:"drops" validate:"gte=0"`
	Score      int `json:"score" yaml:"score"`
}

// NewRetention builds a retention metric with its score derived.
func NewRetention(inductions, renewals, drops int) RetentionMetric {
	return RetentionMetric{
		Inductions: inductions,
		Renewals:   renewals,
		Drops:      drops,
		Score:      inductions + renewals - drops,
	}
}

// Metrics is the full set of raw metrics for a chapter.
type Metrics struct {
	Referrals    ProgressMetric  `json:"referrals" yaml:"referrals"`
	Visitors     ProgressMetric  `json:"visitors" yaml:"visitors"`
	Attendance   ProgressMetric  `json:"attendance" yaml:"attendance"`
	Testimonials ProgressMetric  `json:"testimonials" yaml:"testimonials"`
	Trainings    ProgressMetric  `json:"trainings" yaml:"trainings"`
	Retention    RetentionMetric `json:"retention" yaml:"retention"`
}

// Progress returns the progress metric stored under k.
func (m Metrics) Progress(k MetricKey) (ProgressMetric, bool) {
	switch k {
	case MetricReferrals:
		return m.Referrals, true
	case MetricVisitors:
		return m.Visitors, true
	case MetricAttendance:
		return m.Attendance, true
	case MetricTestimonials:
		return m.Testimonials, true
	case MetricTrainings:
		return m.Trainings, true
	default:
		return ProgressMetric{}, false
	}
}

// WithProgress returns a copy with the metric under k replaced.
func (m Metrics) WithProgress(k MetricKey, p ProgressMetric) (Metrics, bool) {
	switch k {
	case MetricReferrals:
		m.Referrals = p
	case MetricVisitors:
		m.Visitors = p
	case MetricAttendance:
		m.Attendance = p
	case MetricTestimonials:
		m.Testimonials = p
	case MetricTrainings:
		m.Trainings = p
	default:
		return m, false
	}
	return m, true
}

// Normalize re-derives every achievement and the retention score.
func (m Metrics) Normalize() Metrics {
	for _, k := range ScalarMetrics {
		p, _ := m.Progress(k)
		m, _ = m.WithProgress(k, p.WithCurrent(p.Current))
	}
	r := m.Retention
	m.Retention = NewRetention(r.Inductions, r.Renewals, r.Drops)
	return m
}
