// Package ledger provides the vote ledger: aggregated votes per candidate track.
package ledger

import (
	"cmp"
	"slices"

	"github.com/osa030/crowdbox/internal/domain/snapshot"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// entry is a VoteEntry. reachedAt orders ties: the entry that reached its
// current count first ranks higher.
type entry struct {
	count     int
	track     track.Track
	reachedAt uint64
}

// Ledger tracks vote counts per track id.
// It is not safe for concurrent use; the playback controller owns it.
type Ledger struct {
	entries map[string]*entry
	clock   uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
	}
}

// Cast adds one vote for t, creating the entry if needed, and returns the new count.
// The stored track snapshot is replaced by t.
func (l *Ledger) Cast(t track.Track) int {
	l.clock++

	e, ok := l.entries[t.ID]
	if !ok {
		e = &entry{}
		l.entries[t.ID] = e
	}
	e.count++
	e.track = t
	e.reachedAt = l.clock
	return e.count
}

// Count returns the current count for a track (0 when absent).
func (l *Ledger) Count(trackID string) int {
	if e, ok := l.entries[trackID]; ok {
		return e.count
	}
	return 0
}

// Has reports whether the track has an entry.
func (l *Ledger) Has(trackID string) bool {
	_, ok := l.entries[trackID]
	return ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Leaderboard returns entries ordered by count descending.
// Ties go to the entry that reached the count first.
func (l *Ledger) Leaderboard() []snapshot.Entry {
	type ranked struct {
		id string
		e  *entry
	}
	rows := make([]ranked, 0, len(l.entries))
	for id, e := range l.entries {
		if e.count <= 0 {
			continue
		}
		rows = append(rows, ranked{id: id, e: e})
	}

	slices.SortFunc(rows, func(a, b ranked) int {
		if c := cmp.Compare(b.e.count, a.e.count); c != 0 {
			return c
		}
		return cmp.Compare(a.e.reachedAt, b.e.reachedAt)
	})

	result := make([]snapshot.Entry, len(rows))
	for i, r := range rows {
		result[i] = snapshot.Entry{
			TrackID: r.id,
			Count:   r.e.count,
			Track:   r.e.track,
		}
	}
	return result
}

// Winner returns the leading entry if it has at least minVotes votes.
func (l *Ledger) Winner(minVotes int) (snapshot.Entry, bool) {
	if minVotes < 1 {
		minVotes = 1
	}
	board := l.Leaderboard()
	if len(board) == 0 || board[0].Count < minVotes {
		return snapshot.Entry{}, false
	}
	return board[0], true
}

// Clear removes a track's entry. It reports whether an entry existed.
func (l *Ledger) Clear(trackID string) bool {
	if _, ok := l.entries[trackID]; !ok {
		return false
	}
	delete(l.entries, trackID)
	return true
}

// Purge removes every entry whose track matches banned and returns the removed ids.
func (l *Ledger) Purge(banned func(track.Track) bool) []string {
	var removed []string
	for id, e := range l.entries {
		if banned(e.track) {
			delete(l.entries, id)
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	return removed
}
