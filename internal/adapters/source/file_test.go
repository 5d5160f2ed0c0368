package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const seedYAML = `
game:
  metadata:
    gameName: Independence Games
    startDate: "2025-06-17"
    endDate: "2025-08-01"
    currentWeek: 1
    totalWeeks: 6
  chapters:
    KNIGHTZ:
      id: CH002
      members: 30
      color: "#8B5CF6"
      powerUps: ["Shield"]
      metrics:
        referrals: {current: 40, target: 60}
        visitors: {current: 20, target: 30}
        attendance: {current: 94, target: 95}
        testimonials: {current: 30, target: 60}
        trainings: {current: 45, target: 90}
        retention: {inductions: 4, renewals: 6, drops: 1}
activities:
  - id: s1
    chapter: KNIGHTZ
    action: joined the games
    icon: "⚔️"
    timestamp: 2025-06-17T09:00:00Z
`

func TestFileSource(t *testing.T) {
	Convey("Given a YAML seed file", t, func() {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		So(os.WriteFile(path, []byte(seedYAML), 0o600), ShouldBeNil)
		src := NewFile(path)

		Convey("When the game state is fetched", func() {
			state, err := src.FetchGameState(context.Background())

			Convey("Then chapters are keyed and named", func() {
				So(err, ShouldBeNil)
				c := state.Chapters["KNIGHTZ"]
				So(c.Name, ShouldEqual, "KNIGHTZ")
				So(c.Members, ShouldEqual, 30)
				So(c.PowerUps, ShouldResemble, []string{"Shield"})
				So(c.Metrics.Retention.Inductions, ShouldEqual, 4)
			})
		})

		Convey("When activities are fetched", func() {
			acts, err := src.FetchRecentActivity(context.Background())

			Convey("Then the seed is returned", func() {
				So(err, ShouldBeNil)
				So(len(acts), ShouldEqual, 1)
				So(acts[0].ChapterName, ShouldEqual, "KNIGHTZ")
				So(acts[0].Timestamp.Year(), ShouldEqual, 2025)
			})
		})
	})

	Convey("Given a missing seed file", t, func() {
		src := NewFile(filepath.Join(t.TempDir(), "missing.yaml"))

		Convey("Then fetching is DataUnavailable", func() {
			_, err := src.FetchGameState(context.Background())
			So(errors.Is(err, ErrDataUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given a malformed seed file", t, func() {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		So(os.WriteFile(path, []byte("game: [unterminated"), 0o600), ShouldBeNil)

		Convey("Then fetching is DataUnavailable", func() {
			_, err := NewFile(path).FetchRecentActivity(context.Background())
			So(errors.Is(err, ErrDataUnavailable), ShouldBeTrue)
		})
	})
}
