package source

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"
)

var chapterColumns = []string{
	"id", "name", "captain", "coach", "members", "color", "avatar",
	"current_rank", "previous_rank", "streak", "power_ups",
	"weekly_coins", "daily_average", "growth_rate",
	"referrals", "referrals_target", "visitors", "visitors_target",
	"attendance", "attendance_target", "testimonials", "testimonials_target",
	"trainings", "trainings_target", "inductions", "renewals", "drops",
}

func TestPostgresSource(t *testing.T) {
	Convey("Given a postgres source over sqlmock", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer func() { _ = db.Close() }()
		src := NewPostgres(db, WithActivityLimit(5))
		updated := time.Date(2025, 7, 2, 8, 0, 0, 0, time.UTC)

		Convey("When the game state is fetched", func() {
			mock.ExpectQuery(regexp.QuoteMeta("FROM games")).
				WillReturnRows(sqlmock.NewRows([]string{"name", "start_date", "end_date", "current_week", "total_weeks", "updated_at"}).
					AddRow("Games", "2025-06-17", "2025-08-01", 3, 6, updated))
			mock.ExpectQuery(regexp.QuoteMeta("FROM chapters")).
				WillReturnRows(sqlmock.NewRows(chapterColumns).
					AddRow("CH001", "INCREDIBLEZ", "Captain 1", nil, 28, "#EF4444", "🦸",
						2, 1, 3, `["Power Up 1"]`,
						1800, 250, 9.5,
						45, 60, 25, 30,
						95, 95, 40, 60,
						50, 90, 5, 8, 1))

			state, err := src.FetchGameState(context.Background())

			Convey("Then rows are mapped onto the model", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
				So(state.Metadata.CurrentWeek, ShouldEqual, 3)
				So(state.Metadata.LastUpdated, ShouldEqual, updated)
				c := state.Chapters["INCREDIBLEZ"]
				So(c.Coach, ShouldEqual, "")
				So(c.PowerUps, ShouldResemble, []string{"Power Up 1"})
				So(c.Metrics.Referrals.Achievement, ShouldEqual, 75)
				So(c.Metrics.Retention.Score, ShouldEqual, 12)
				So(c.Performance.GrowthRate, ShouldEqual, 9.5)
			})
		})

		Convey("When the games table is empty", func() {
			mock.ExpectQuery(regexp.QuoteMeta("FROM games")).
				WillReturnRows(sqlmock.NewRows([]string{"name"}))

			_, err := src.FetchGameState(context.Background())

			Convey("Then DataUnavailable is returned", func() {
				So(errors.Is(err, ErrDataUnavailable), ShouldBeTrue)
			})
		})

		Convey("When activities are fetched", func() {
			at := time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC)
			mock.ExpectQuery(regexp.QuoteMeta("FROM activities")).
				WithArgs(5).
				WillReturnRows(sqlmock.NewRows([]string{"id", "chapter", "action", "icon", "color", "created_at"}).
					AddRow("a2", "EPIC", "updated visitors (+2)", "💰", "#F59E0B", at).
					AddRow("a1", "EPIC", "joined", "🎯", nil, at.Add(-time.Hour)))

			acts, err := src.FetchRecentActivity(context.Background())

			Convey("Then they are returned newest first", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
				So(len(acts), ShouldEqual, 2)
				So(acts[0].ID, ShouldEqual, "a2")
				So(acts[0].Color, ShouldEqual, "#F59E0B")
				So(acts[1].Color, ShouldEqual, "")
			})
		})

		Convey("When the activity query fails", func() {
			mock.ExpectQuery(regexp.QuoteMeta("FROM activities")).WillReturnError(errors.New("relation does not exist"))

			_, err := src.FetchRecentActivity(context.Background())

			Convey("Then DataUnavailable is returned", func() {
				So(errors.Is(err, ErrDataUnavailable), ShouldBeTrue)
			})
		})
	})
}
