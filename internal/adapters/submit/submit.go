// Package submit sends locally applied changes to remote collaborators.
// Submissions are fire-and-forget: failures are logged and never undo the
// local change.
package submit

import (
	"context"
	"errors"

	"github.com/okian/coinboard/internal/domain/model"
)

// Submitter receives local metric edits and the activities they produced.
type Submitter interface {
	SubmitMetricUpdate(ctx context.Context, chapterID string, patch map[string]any) error
	SubmitActivity(ctx context.Context, a model.ActivityEvent) error
}

// StandingsPublisher receives every committed ranking.
type StandingsPublisher interface {
	PublishStandings(ctx context.Context, ranked []model.Chapter) error
}

// Nop discards every submission.
type Nop struct{}

// SubmitMetricUpdate implements Submitter.
func (Nop) SubmitMetricUpdate(context.Context, string, map[string]any) error { return nil }

// SubmitActivity implements Submitter.
func (Nop) SubmitActivity(context.Context, model.ActivityEvent) error { return nil }

// Multi fans each submission out to every submitter in order.
type Multi []Submitter

// SubmitMetricUpdate implements Submitter. All submitters are tried; their
// errors are joined.
func (m Multi) SubmitMetricUpdate(ctx context.Context, chapterID string, patch map[string]any) error {
	var errs []error
	for _, s := range m {
		if err := s.SubmitMetricUpdate(ctx, chapterID, patch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubmitActivity implements Submitter.
func (m Multi) SubmitActivity(ctx context.Context, a model.ActivityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.SubmitActivity(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishStandings forwards to every member that publishes standings.
func (m Multi) PublishStandings(ctx context.Context, ranked []model.Chapter) error {
	var errs []error
	for _, s := range m {
		if p, ok := s.(StandingsPublisher); ok {
			if err := p.PublishStandings(ctx, ranked); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Combine returns a single Submitter for the non-nil submitters given.
func Combine(subs ...Submitter) Submitter {
	var out Multi
	for _, s := range subs {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	default:
		return out
	}
}
