package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/okian/coinboard/internal/domain/model"
)

const (
	pingTimeout = 5 * time.Second

	gameQuery = `SELECT name, start_date, end_date, current_week, total_weeks, updated_at
FROM games ORDER BY updated_at DESC LIMIT 1`

	chaptersQuery = `SELECT id, name, captain, coach, members, color, avatar,
	current_rank, previous_rank, streak, power_ups,
	weekly_coins, daily_average, growth_rate,
	referrals, referrals_target, visitors, visitors_target,
	attendance, attendance_target, testimonials, testimonials_target,
	trainings, trainings_target, inductions, renewals, drops
FROM chapters ORDER BY id`

	activitiesQuery = `SELECT id, chapter, action, icon, color, created_at
FROM activities ORDER BY created_at DESC LIMIT $1`
)

// OpenPostgres opens a lib/pq connection pool and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", ErrDataUnavailable, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", ErrDataUnavailable, err)
	}
	return db, nil
}

// PostgresOption configures a Postgres source.
type PostgresOption func(*Postgres)

// WithActivityLimit caps the number of activities read.
func WithActivityLimit(n int) PostgresOption {
	return func(p *Postgres) {
		if n > 0 {
			p.activityLimit = n
		}
	}
}

// Postgres reads the game from the games, chapters and activities tables.
// It never writes.
type Postgres struct {
	db            *sql.DB
	activityLimit int
}

// NewPostgres creates a source over an open database.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, activityLimit: 10}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchGameState implements GameSource.
func (p *Postgres) FetchGameState(ctx context.Context) (model.GameState, error) {
	var (
		meta    model.Metadata
		updated sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, gameQuery).Scan(
		&meta.GameName, &meta.StartDate, &meta.EndDate, &meta.CurrentWeek, &meta.TotalWeeks, &updated,
	)
	if err != nil {
		return model.GameState{}, fmt.Errorf("%w: games: %v", ErrDataUnavailable, err)
	}
	meta.LastUpdated = updated.Time

	rows, err := p.db.QueryContext(ctx, chaptersQuery)
	if err != nil {
		return model.GameState{}, fmt.Errorf("%w: chapters: %v", ErrDataUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	state := model.GameState{Metadata: meta, Chapters: map[string]model.Chapter{}}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return model.GameState{}, fmt.Errorf("%w: chapters: %v", ErrDataUnavailable, err)
		}
		state.Chapters[c.Name] = c
	}
	if err := rows.Err(); err != nil {
		return model.GameState{}, fmt.Errorf("%w: chapters: %v", ErrDataUnavailable, err)
	}
	return state, nil
}

func scanChapter(rows *sql.Rows) (model.Chapter, error) {
	var (
		c                          model.Chapter
		captain, coach             sql.NullString
		color, avatar              sql.NullString
		powerUps                   sql.NullString
		ref, vis, att, tst, trn    int
		refT, visT, attT, tstT, tT int
		ind, ren, drp              int
	)
	err := rows.Scan(
		&c.ID, &c.Name, &captain, &coach, &c.Members, &color, &avatar,
		&c.CurrentRank, &c.PreviousRank, &c.Streak, &powerUps,
		&c.Performance.WeeklyCoins, &c.Performance.DailyAverage, &c.Performance.GrowthRate,
		&ref, &refT, &vis, &visT,
		&att, &attT, &tst, &tstT,
		&trn, &tT, &ind, &ren, &drp,
	)
	if err != nil {
		return model.Chapter{}, err
	}
	c.Captain, c.Coach = captain.String, coach.String
	c.Color, c.Avatar = color.String, avatar.String
	if powerUps.Valid && powerUps.String != "" {
		if err := json.Unmarshal([]byte(powerUps.String), &c.PowerUps); err != nil {
			return model.Chapter{}, fmt.Errorf("chapter %q power_ups: %w", c.Name, err)
		}
	}
	c.Metrics = model.Metrics{
		Referrals:    model.NewProgress(ref, refT),
		Visitors:     model.NewProgress(vis, visT),
		Attendance:   model.NewProgress(att, attT),
		Testimonials: model.NewProgress(tst, tstT),
		Trainings:    model.NewProgress(trn, tT),
		Retention:    model.NewRetention(ind, ren, drp),
	}
	return c, nil
}

// FetchRecentActivity implements ActivitySource.
func (p *Postgres) FetchRecentActivity(ctx context.Context) ([]model.ActivityEvent, error) {
	rows, err := p.db.QueryContext(ctx, activitiesQuery, p.activityLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: activities: %v", ErrDataUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ActivityEvent
	for rows.Next() {
		var (
			a     model.ActivityEvent
			color sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ChapterName, &a.Action, &a.Icon, &color, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: activities: %v", ErrDataUnavailable, err)
		}
		a.Color = color.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: activities: %v", ErrDataUnavailable, err)
	}
	return out, nil
}
