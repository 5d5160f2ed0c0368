// Package ranking derives standings and summary statistics from a game state.
package ranking

import (
	"math"
	"sort"

	"github.com/okian/coinboard/internal/domain/model"
)

// NotAvailable is reported as the top performer of an empty game.
const NotAvailable = "N/A"

// PriorOrder returns the chapters in their last committed order: current rank
// ascending, unranked chapters last, then id and name for determinism.
func PriorOrder(state model.GameState) []model.Chapter {
	out := make([]model.Chapter, 0, len(state.Chapters))
	for _, c := range state.Chapters {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CurrentRank != b.CurrentRank {
			if a.CurrentRank == 0 {
				return false
			}
			if b.CurrentRank == 0 {
				return true
			}
			return a.CurrentRank < b.CurrentRank
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})
	return out
}

// Rank commits a new ranking. Chapters are stably sorted by total coins
// descending from their prior order, previous ranks take the old current
// ranks, and current ranks become 1-based positions. state is not modified.
func Rank(state model.GameState) (model.GameState, []model.Chapter) {
	ordered := PriorOrder(state)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Performance.TotalCoins > ordered[j].Performance.TotalCoins
	})

	next := state.Clone()
	for i := range ordered {
		c := &ordered[i]
		rank := i + 1
		if c.CurrentRank == 0 {
			c.PreviousRank = rank
		} else {
			c.PreviousRank = c.CurrentRank
		}
		c.CurrentRank = rank
		next.Chapters[c.Name] = c.Clone()
	}
	return next, ordered
}

// Changed counts chapters whose rank moved in the last committed ranking.
func Changed(ranked []model.Chapter) int {
	n := 0
	for _, c := range ranked {
		if c.CurrentRank != c.PreviousRank {
			n++
		}
	}
	return n
}

// Standings returns the chapters ordered by current rank without committing
// a new ranking.
func Standings(state model.GameState) []model.Chapter {
	return PriorOrder(state)
}

// Summary aggregates the whole game.
type Summary struct {
	TotalParticipants   int     `json:"totalParticipants"`
	TotalCoinsGenerated int     `json:"totalCoinsGenerated"`
	AverageEfficiency   int     `json:"averageEfficiency"`
	TopPerformer        string  `json:"topPerformer"`
	WeeklyGrowth        float64 `json:"weeklyGrowth"`
	RetentionLeader     string  `json:"retentionLeader"`
}

// Summarize computes the summary over chapters in ranked order; the first
// chapter is the top performer. An empty input yields zeros and "N/A".
func Summarize(ranked []model.Chapter) Summary {
	if len(ranked) == 0 {
		return Summary{TopPerformer: NotAvailable, RetentionLeader: NotAvailable}
	}

	s := Summary{TopPerformer: ranked[0].Name, RetentionLeader: ranked[0].Name}
	var efficiency, growth float64
	bestInductions := ranked[0].Metrics.Retention.Inductions
	for _, c := range ranked {
		s.TotalParticipants += c.Members
		s.TotalCoinsGenerated += c.Performance.TotalCoins
		efficiency += float64(c.Performance.Efficiency)
		growth += c.Performance.GrowthRate
		if c.Metrics.Retention.Inductions > bestInductions {
			bestInductions = c.Metrics.Retention.Inductions
			s.RetentionLeader = c.Name
		}
	}
	n := float64(len(ranked))
	s.AverageEfficiency = int(math.Floor(efficiency/n + 0.5))
	s.WeeklyGrowth = math.Floor(growth/n*10+0.5) / 10
	return s
}
