package feedsim

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coinboard/internal/demo"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/internal/domain/model"
)

// Kind names the frame variants the generator produces.
type Kind string

// Frame kinds.
const (
	KindMetricUpdate Kind = "metric_update"
	KindActivity     Kind = "activity"
	KindAchievement  Kind = "achievement"
	KindSyncStatus   Kind = "sync_status"
	KindMalformed    Kind = "malformed"
)

// Frame is one encoded feed frame.
type Frame struct {
	Kind Kind
	Data []byte
}

const randomFloatDivisor = 1000000

// Cumulative thresholds for picking a well-formed frame kind.
const (
	metricShare      = 0.5
	activityShare    = 0.75
	achievementShare = 0.85

	retentionShare = 0.2
)

var (
	//nolint:gochecknoglobals // fixed demo phrases
	actions = []struct{ action, icon string }{
		{"brought 2 visitors", "👥"},
		{"closed a referral", "🤝"},
		{"completed a training", "📚"},
		{"shared a testimonial", "💬"},
		{"inducted a new member", "🎉"},
	}
	//nolint:gochecknoglobals // fixed demo achievements
	achievements = []struct {
		icon, title string
		points      int
	}{
		{"🎯", "Visitor Magnet", 150},
		{"🔥", "Referral Streak", 200},
		{"🏆", "Perfect Attendance", 100},
	}
	//nolint:gochecknoglobals // broken frames the channel must survive
	malformed = [][]byte{
		[]byte(`{"type":"METRIC_UPDATE"`),
		[]byte(`not json`),
		[]byte(`{"type":"ACTIVITY"}`),
		[]byte(`{"type":"SCOREBOARD_RESET","payload":{}}`),
		[]byte(`{}`),
	}
	syncStatuses = []string{"SYNCED", "SYNCING"} //nolint:gochecknoglobals // fixed statuses
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRandom replaces the random source. f must return values in [0, 1).
func WithRandom(f func() float64) GeneratorOption {
	return func(g *Generator) {
		g.random = f
	}
}

// WithClock replaces the clock used for activity timestamps.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// Generator produces plausible frames for the demo chapters. Metric values
// only grow so that every update is a gain.
type Generator struct {
	mu            sync.Mutex
	chapters      []model.Chapter
	malformedRate float64
	random        func() float64
	now           func() time.Time
}

// NewGenerator seeds chapters from the demo data.
func NewGenerator(malformedRate float64, opts ...GeneratorOption) *Generator {
	g := &Generator{
		malformedRate: malformedRate,
		random:        getRandomFloat,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	state := demo.GameState(demo.WithClock(g.now))
	for _, c := range state.Chapters {
		g.chapters = append(g.chapters, c)
	}
	sort.Slice(g.chapters, func(i, j int) bool { return g.chapters[i].Name < g.chapters[j].Name })
	return g
}

func (g *Generator) intn(n int) int {
	i := int(g.random() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Next returns the next frame.
func (g *Generator) Next() (Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.random() < g.malformedRate {
		return Frame{Kind: KindMalformed, Data: malformed[g.intn(len(malformed))]}, nil
	}

	var (
		kind Kind
		e    events.Event
		err  error
	)
	switch p := g.random(); {
	case p < metricShare:
		kind = KindMetricUpdate
		e, err = g.metricUpdate()
	case p < activityShare:
		kind, e = KindActivity, g.activity()
	case p < achievementShare:
		kind, e = KindAchievement, g.achievement()
	default:
		kind, e = KindSyncStatus, events.SyncStatus{Status: syncStatuses[g.intn(len(syncStatuses))]}
	}
	if err != nil {
		return Frame{}, err
	}

	data, err := events.Encode(e)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", kind, err)
	}
	return Frame{Kind: kind, Data: data}, nil
}

func (g *Generator) metricUpdate() (events.Event, error) {
	i := g.intn(len(g.chapters))
	c := &g.chapters[i]
	key := model.ScalarMetrics[g.intn(len(model.ScalarMetrics))]

	values := map[string]any{}
	p, _ := c.Metrics.Progress(key)
	p = p.WithCurrent(p.Current + 1 + g.intn(3))
	c.Metrics, _ = c.Metrics.WithProgress(key, p)
	values[string(key)] = p.Current

	if g.random() < retentionShare {
		r := c.Metrics.Retention
		c.Metrics.Retention = model.NewRetention(r.Inductions+1, r.Renewals, r.Drops)
		values[string(model.MetricRetention)] = c.Metrics.Retention
	}
	return events.NewMetricUpdate(c.Name, values)
}

func (g *Generator) activity() events.Event {
	c := g.chapters[g.intn(len(g.chapters))]
	a := actions[g.intn(len(actions))]
	return events.Activity{Activity: model.ActivityEvent{
		ID:          uuid.New().String(),
		ChapterName: c.Name,
		Action:      a.action,
		Icon:        a.icon,
		Color:       c.Color,
		Timestamp:   g.now().UTC(),
	}}
}

func (g *Generator) achievement() events.Event {
	c := g.chapters[g.intn(len(g.chapters))]
	a := achievements[g.intn(len(achievements))]
	return events.Achievement{Achievement: model.AchievementEvent{
		ChapterName: c.Name,
		Icon:        a.icon,
		Title:       a.title,
		Points:      a.points,
	}}
}
