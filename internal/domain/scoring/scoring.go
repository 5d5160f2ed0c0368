// Package scoring converts a chapter's raw metrics into coins.
package scoring

import (
	"math"

	"github.com/okian/coinboard/internal/domain/model"
)

// Default weights of the coin formula.
const (
	defaultReferralCoins         = 1
	defaultVisitorCoins          = 50
	defaultAttendanceShortfall   = 10
	defaultTestimonialCoins      = 5
	defaultTrainingCoins         = 25
	defaultTestimonialCapPerHead = 2
	defaultTrainingCapPerHead    = 3

	defaultReferralPerMember    = 500
	defaultVisitorPerMember     = 10000
	defaultTestimonialPerMember = 1000
	defaultTrainingPerMember    = 5000
	defaultAttendanceThreshold  = 95
	defaultAttendancePenalty    = 1000

	fullAttendance  = 100
	maxEfficiency   = 100
	efficiencyParts = 5
)

// Weights are the named constants of the coin formula. The shape of the
// formula is fixed; only its coefficients vary.
type Weights struct {
	// Individual component.
	ReferralCoins       float64
	VisitorCoins        float64
	AttendanceShortfall float64 // coins lost per point of attendance below 100
	TestimonialCoins    float64
	TrainingCoins       float64

	// Caps, as multiples of the roster size.
	TestimonialCapPerHead int
	TrainingCapPerHead    int

	// Chapter-normalized component (per-member averages scaled up).
	ReferralPerMember    float64
	VisitorPerMember     float64
	TestimonialPerMember float64
	TrainingPerMember    float64
	AttendanceThreshold  int
	AttendancePenalty    float64 // flat penalty when attendance is below the threshold
}

// DefaultWeights returns the standard competition weights.
func DefaultWeights() Weights {
	return Weights{
		ReferralCoins:         defaultReferralCoins,
		VisitorCoins:          defaultVisitorCoins,
		AttendanceShortfall:   defaultAttendanceShortfall,
		TestimonialCoins:      defaultTestimonialCoins,
		TrainingCoins:         defaultTrainingCoins,
		TestimonialCapPerHead: defaultTestimonialCapPerHead,
		TrainingCapPerHead:    defaultTrainingCapPerHead,
		ReferralPerMember:     defaultReferralPerMember,
		VisitorPerMember:      defaultVisitorPerMember,
		TestimonialPerMember:  defaultTestimonialPerMember,
		TrainingPerMember:     defaultTrainingPerMember,
		AttendanceThreshold:   defaultAttendanceThreshold,
		AttendancePenalty:     defaultAttendancePenalty,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights replaces the formula coefficients.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// Engine computes coin totals. It is stateless after construction and safe
// for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with the default weights unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine() //nolint:gochecknoglobals // stateless default

// TotalCoins computes the coin total with the default weights.
func TotalCoins(m model.Metrics, members int) int {
	return defaultEngine.TotalCoins(m, members)
}

// Components returns the individual and chapter-normalized parts before rounding.
// members must be positive; chapters are validated at construction.
func (e *Engine) Components(m model.Metrics, members int) (individual, normalized float64) {
	w := e.weights
	n := float64(members)

	testimonials := min(m.Testimonials.Current, members*w.TestimonialCapPerHead)
	trainings := min(m.Trainings.Current, members*w.TrainingCapPerHead)

	individual = float64(m.Referrals.Current)*w.ReferralCoins +
		float64(m.Visitors.Current)*w.VisitorCoins -
		w.AttendanceShortfall*float64(fullAttendance-m.Attendance.Current) +
		w.TestimonialCoins*float64(testimonials) +
		w.TrainingCoins*float64(trainings)

	penalty := 0.0
	if m.Attendance.Current < w.AttendanceThreshold {
		penalty = -w.AttendancePenalty
	}
	normalized = w.ReferralPerMember*(float64(m.Referrals.Current)/n) +
		w.VisitorPerMember*(float64(m.Visitors.Current)/n) +
		penalty +
		w.TestimonialPerMember*(float64(testimonials)/n) +
		w.TrainingPerMember*(float64(trainings)/n)

	return individual, normalized
}

// TotalCoins computes round(individual + normalized). Rounding happens once.
func (e *Engine) TotalCoins(m model.Metrics, members int) int {
	individual, normalized := e.Components(m, members)
	return round(individual + normalized)
}

// Efficiency is the mean achievement of the five progress metrics, each
// capped at 100, rounded and clamped to [0, 100].
func Efficiency(m model.Metrics) int {
	sum := 0
	for _, k := range model.ScalarMetrics {
		p, _ := m.Progress(k)
		sum += max(0, min(p.Achievement, maxEfficiency))
	}
	return max(0, min(maxEfficiency, round(float64(sum)/efficiencyParts)))
}

// Recompute refreshes the derived performance fields of c from its metrics.
func (e *Engine) Recompute(c model.Chapter) model.Chapter {
	c.Performance.TotalCoins = e.TotalCoins(c.Metrics, c.Members)
	c.Performance.Efficiency = Efficiency(c.Metrics)
	return c
}

// round rounds half up, matching the dashboard's rounding of negative halves.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}
