// Package devicesync merges edits made on two devices, resolving edits to
// the same resource by last write wins.
package devicesync

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ResolutionLastWriteWins annotates the surviving change of a conflict.
const ResolutionLastWriteWins = "last_write_wins"

// Change is one edit recorded on a device.
type Change struct {
	Device     string         `json:"device"`
	Type       string         `json:"type"`
	Resource   string         `json:"resource"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
}

// Conflict pairs the latest change of each device to one resource.
type Conflict struct {
	Resource string `json:"resource"`
	A        Change `json:"a"`
	B        Change `json:"b"`
	Winner   string `json:"winner,omitempty"`
}

// Result is the merged change set.
type Result struct {
	Resolved      bool       `json:"resolved"`
	ConflictCount int        `json:"conflictCount"`
	Conflicts     []Conflict `json:"conflicts"`
	MergedChanges []Change   `json:"mergedChanges"`
}

// Resolver detects and resolves conflicts between two change sets.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// DetectConflicts returns one conflict per resource changed on both sides,
// ordered by resource.
func (r *Resolver) DetectConflicts(a, b []Change) ([]Conflict, error) {
	latestA, err := latestByResource(a)
	if err != nil {
		return nil, fmt.Errorf("device A: %w", err)
	}
	latestB, err := latestByResource(b)
	if err != nil {
		return nil, fmt.Errorf("device B: %w", err)
	}

	conflicts := []Conflict{}
	for resource, changeA := range latestA {
		if changeB, ok := latestB[resource]; ok {
			conflicts = append(conflicts, Conflict{Resource: resource, A: changeA, B: changeB})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Resource < conflicts[j].Resource })
	return conflicts, nil
}

// Resolve picks the later change of every conflict, device B winning ties,
// and merges the winners with every non-conflicting change of both sides.
// The merged list is ordered by timestamp.
func (r *Resolver) Resolve(conflicts []Conflict, a, b []Change) *Result {
	conflicted := make(map[string]struct{}, len(conflicts))
	result := &Result{
		ConflictCount: len(conflicts),
		Conflicts:     make([]Conflict, 0, len(conflicts)),
		MergedChanges: []Change{},
	}

	for _, c := range conflicts {
		conflicted[c.Resource] = struct{}{}
		winner := c.B
		if c.A.Timestamp.After(c.B.Timestamp) {
			winner = c.A
		}
		winner.Resolution = ResolutionLastWriteWins
		c.Winner = winner.Device
		result.Conflicts = append(result.Conflicts, c)
		result.MergedChanges = append(result.MergedChanges, winner)
	}

	for _, side := range [][]Change{a, b} {
		for _, change := range side {
			if _, ok := conflicted[change.Resource]; ok {
				continue
			}
			result.MergedChanges = append(result.MergedChanges, change)
		}
	}

	sort.SliceStable(result.MergedChanges, func(i, j int) bool {
		return result.MergedChanges[i].Timestamp.Before(result.MergedChanges[j].Timestamp)
	})
	result.Resolved = true

	r.logger.Debug("resolved device changes",
		zap.String("op", "devicesync.Resolve"),
		zap.Int("conflicts", result.ConflictCount),
		zap.Int("merged", len(result.MergedChanges)),
	)
	return result
}

// Sync detects and resolves in one step.
func (r *Resolver) Sync(a, b []Change) (*Result, error) {
	conflicts, err := r.DetectConflicts(a, b)
	if err != nil {
		return nil, err
	}
	return r.Resolve(conflicts, a, b), nil
}

func latestByResource(changes []Change) (map[string]Change, error) {
	latest := make(map[string]Change, len(changes))
	for i, c := range changes {
		if c.Resource == "" {
			return nil, fmt.Errorf("change %d has no resource", i)
		}
		if c.Timestamp.IsZero() {
			return nil, fmt.Errorf("change %d to %s has no timestamp", i, c.Resource)
		}
		if prev, ok := latest[c.Resource]; !ok || !c.Timestamp.Before(prev.Timestamp) {
			latest[c.Resource] = c
		}
	}
	return latest, nil
}
