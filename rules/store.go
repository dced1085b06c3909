package rules

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrConfig indicates rule configuration that cannot be loaded or parsed.
// Errors returned from Store.Load wrap it.
var ErrConfig = errors.New("configuration error")

// Store loads rule configuration into an executable snapshot.
//
// Individual malformed records are dropped with a warning; Load only fails
// when the configuration source itself cannot be read.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// newSnapshot filters inactive rules out and orders the rest by priority
// descending. The sort is stable so records with equal priority keep their
// configuration order.
func newSnapshot(completion []CompletionRule, validation []ValidationRule) *Snapshot {
	comp := make([]CompletionRule, 0, len(completion))
	for _, r := range completion {
		if r.Active {
			comp = append(comp, r)
		}
	}
	val := make([]ValidationRule, 0, len(validation))
	for _, r := range validation {
		if r.Active {
			val = append(val, r)
		}
	}
	sort.SliceStable(comp, func(i, j int) bool { return comp[i].Priority > comp[j].Priority })
	sort.SliceStable(val, func(i, j int) bool { return val[i].Priority > val[j].Priority })

	return &Snapshot{
		Completion: comp,
		Validation: val,
		LoadedAt:   time.Now(),
	}
}
