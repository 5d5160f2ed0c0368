// Package demo builds the fallback game used when no data source answers.
package demo

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/reconcile"
)

const randomFloatDivisor = 1_000_000

// Game metadata of the fallback competition.
const (
	GameName    = "BNI Independence Games 2.0"
	StartDate   = "2025-06-17"
	EndDate     = "2025-08-01"
	TotalWeeks  = 6
	CurrentWeek = 1
)

// Progress targets used for every fallback chapter.
const (
	referralTarget    = 60
	visitorTarget     = 30
	attendanceTarget  = 95
	testimonialTarget = 60
	trainingTarget    = 90
)

// TeamProfile is the fixed identity of one default team.
type TeamProfile struct {
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	Ability string `json:"ability"`
	Motto   string `json:"motto"`
}

// Challenge is the static daily challenge shown next to the summary.
type Challenge struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int    `json:"reward"`
	Progress    int    `json:"progress"`
	Target      int    `json:"target"`
}

// Teams lists the default teams in their display order.
var Teams = []TeamProfile{ //nolint:gochecknoglobals // fixed roster
	{Name: "INCREDIBLEZ", Avatar: "🦸", Ability: "Double Referral Bonus", Motto: "Incredible Results, Every Time"},
	{Name: "KNIGHTZ", Avatar: "⚔️", Ability: "Attendance Shield", Motto: "Honor in Business"},
	{Name: "ETERNAL", Avatar: "♾️", Ability: "Retention Master", Motto: "Connections That Last Forever"},
	{Name: "CELEBRATIONS", Avatar: "🎉", Ability: "Visitor Magnet", Motto: "Every Win is a Celebration"},
	{Name: "OPULANCE", Avatar: "💎", Ability: "Premium Testimonials", Motto: "Excellence in Every Detail"},
	{Name: "EPIC", Avatar: "🏛️", Ability: "Training Champion", Motto: "Epic Growth, Epic Success"},
	{Name: "VICTORY", Avatar: "🏆", Ability: "Induction Expert", Motto: "Victory Through Unity"},
	{Name: "ACHIEVERZ", Avatar: "🎯", Ability: "All-Rounder Bonus", Motto: "Achieving Beyond Limits"},
}

var colors = []string{"#EF4444", "#8B5CF6", "#3B82F6", "#10B981", "#EC4899", "#F59E0B", "#EF4444", "#14B8A6"} //nolint:gochecknoglobals // palette

// Profile looks up a default team by name.
func Profile(name string) (TeamProfile, bool) {
	for _, t := range Teams {
		if t.Name == name {
			return t, true
		}
	}
	return TeamProfile{}, false
}

// DailyChallenge returns today's challenge.
func DailyChallenge() Challenge {
	return Challenge{
		Title:       "Visitor Frenzy",
		Description: "Bring 3 visitors to today's meeting",
		Reward:      150,
		Target:      3,
	}
}

// Option configures the generator.
type Option func(*generator)

// WithRandom replaces the random source. f must return values in [0,1).
func WithRandom(f func() float64) Option {
	return func(g *generator) {
		if f != nil {
			g.rand = f
		}
	}
}

// WithClock sets the time stamped on generated data.
func WithClock(now func() time.Time) Option {
	return func(g *generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithReconciler sets the reconciler used to derive scores.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(g *generator) {
		if r != nil {
			g.rec = r
		}
	}
}

type generator struct {
	rand func() float64
	now  func() time.Time
	rec  *reconcile.Reconciler
}

func newGenerator(opts ...Option) *generator {
	g := &generator{rand: randomFloat, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.rec == nil {
		g.rec = reconcile.New(reconcile.WithClock(g.now))
	}
	return g
}

// randomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// intn returns an int in [0,n).
func (g *generator) intn(n int) int {
	return int(g.rand() * float64(n))
}

// GameState generates the fallback game: every default team with plausible
// random metrics, derived fields recomputed and ranks unset.
func GameState(opts ...Option) model.GameState {
	g := newGenerator(opts...)

	state := model.GameState{
		Metadata: model.Metadata{
			GameName:    GameName,
			StartDate:   StartDate,
			EndDate:     EndDate,
			CurrentWeek: CurrentWeek,
			TotalWeeks:  TotalWeeks,
			LastUpdated: g.now().UTC(),
		},
		Chapters: make(map[string]model.Chapter, len(Teams)),
	}
	for i, team := range Teams {
		state.Chapters[team.Name] = g.chapter(i, team)
	}
	return g.rec.Normalize(state)
}

func (g *generator) chapter(i int, team TeamProfile) model.Chapter {
	return model.Chapter{
		ID:       fmt.Sprintf("CH%03d", i+1),
		Name:     team.Name,
		Captain:  fmt.Sprintf("Captain %d", i+1),
		Coach:    fmt.Sprintf("Coach %d", i+1),
		Members:  25 + g.intn(10),
		Color:    colors[i%len(colors)],
		Avatar:   team.Avatar,
		Streak:   1 + g.intn(5),
		PowerUps: []string{"Power Up 1", "Power Up 2"},
		Performance: model.PerformanceSnapshot{
			WeeklyCoins:  1400 + g.intn(1400),
			DailyAverage: 200 + g.intn(200),
			GrowthRate:   float64(int((5+g.rand()*13)*10)) / 10,
		},
		Metrics: model.Metrics{
			Referrals:    model.NewProgress(30+g.intn(25), referralTarget),
			Visitors:     model.NewProgress(18+g.intn(12), visitorTarget),
			Attendance:   model.NewProgress(92+g.intn(6), attendanceTarget),
			Testimonials: model.NewProgress(28+g.intn(17), testimonialTarget),
			Trainings:    model.NewProgress(40+g.intn(22), trainingTarget),
			Retention:    model.NewRetention(3+g.intn(4), 5+g.intn(6), 1+g.intn(2)),
		},
	}
}

// Activities returns the fixed seed of the activity feed, newest first.
func Activities(opts ...Option) []model.ActivityEvent {
	g := newGenerator(opts...)
	now := g.now().UTC()
	return []model.ActivityEvent{
		{ID: "1", ChapterName: "INCREDIBLEZ", Action: "gained 500 coins", Icon: "💰", Timestamp: now},
		{ID: "2", ChapterName: "VICTORY", Action: "achieved 100% attendance", Icon: "✅", Timestamp: now.Add(-time.Minute)},
		{ID: "3", ChapterName: "EPIC", Action: "completed training milestone", Icon: "🎯", Timestamp: now.Add(-2 * time.Minute)},
	}
}
