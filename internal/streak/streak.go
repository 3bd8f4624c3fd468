// Package streak derives a habit's streak state from its log history.
//
// Compute is pure: it reads an immutable snapshot of entries and a reference
// day and never touches storage, so it is safe to call concurrently.
package streak

import (
	"sort"

	"github.com/julianstephens/habitd/internal/models"
	"github.com/julianstephens/habitd/internal/utils"
)

// Compute returns the streak state for one habit's entries as of today
// (YYYY-MM-DD in the reference timezone). Entries may arrive in any order.
// When two entries share a day the first one in input order wins.
func Compute(entries []models.LogEntry, today string) models.StreakState {
	if len(entries) == 0 {
		return models.StreakState{}
	}

	yesterday, err := utils.PreviousDay(today)
	if err != nil {
		return models.StreakState{}
	}

	days := distinctDaysDescending(entries)

	latest := days[0]
	completedToday := latest == today

	expected := yesterday
	if completedToday {
		expected = today
	}

	streak := 0
	for _, day := range days {
		if day != expected {
			break
		}
		streak++
		expected, err = utils.PreviousDay(expected)
		if err != nil {
			break
		}
	}

	return models.StreakState{
		CurrentStreak:  streak,
		CompletedToday: completedToday,
		// True whenever neither today nor yesterday is logged, however
		// large the gap. Drives the repair button only.
		MissedYesterday: !completedToday && latest != yesterday,
	}
}

// distinctDaysDescending keeps the first entry seen for each day and
// returns the days newest first. YYYY-MM-DD sorts lexically by date.
func distinctDaysDescending(entries []models.LogEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	days := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Day]; ok {
			continue
		}
		seen[e.Day] = struct{}{}
		days = append(days, e.Day)
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i] > days[j]
	})
	return days
}

// GroupByHabit splits a mixed batch of entries by habit id, preserving
// the relative order of each habit's entries.
func GroupByHabit(entries []models.LogEntry) map[string][]models.LogEntry {
	grouped := make(map[string][]models.LogEntry)
	for _, e := range entries {
		grouped[e.HabitID] = append(grouped[e.HabitID], e)
	}
	return grouped
}
