// Package store persists analysis records: the merge of a run's updates
// into the combined store, atomic JSON artifacts on disk, and an optional
// Redis mirror.
package store

import "github.com/seenimoa/moodpulse/pkg/models"

// Merge overlays updates onto existing for every tracked id. Ids without an
// update keep their existing record (or stay absent). Keys outside trackedIDs
// are dropped, as are updates for untracked ids. Neither input is modified.
func Merge(existing, updates models.Store, trackedIDs []string) models.Store {
	out := make(models.Store, len(trackedIDs))
	for _, id := range trackedIDs {
		if rec, ok := updates[id]; ok {
			out[id] = rec
			continue
		}
		if rec, ok := existing[id]; ok {
			out[id] = rec
		}
	}
	return out
}
