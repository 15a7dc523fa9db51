package session

import (
	"sort"

	"elsa-fe/internal/domain"
)

// Rank orders a leaderboard snapshot by score descending. Entries with equal
// scores keep their relative order from the input so equal-score rows do not
// jitter between pushes. Pure; the input is not modified.
func Rank(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	ranked := make([]domain.LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Aggregator holds the most recent ranked snapshot. Every push is a full
// replacement, so no history is kept. Callers serialize access; the
// coordinator owns one Aggregator per session.
type Aggregator struct {
	entries []domain.LeaderboardEntry
}

// Replace re-ranks and stores a new snapshot.
func (a *Aggregator) Replace(entries []domain.LeaderboardEntry) {
	a.entries = Rank(entries)
}

// Entries returns a copy of the current ranked snapshot.
func (a *Aggregator) Entries() []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
