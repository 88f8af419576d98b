// Package ordering ranks workflow items for queue display and auto-assignment.
package ordering

import (
	"sort"
	"time"

	"github.com/spec-kit/factory-workflow/internal/domain"
)

// Direction selects the timestamp order applied after priority weight.
type Direction string

const (
	Newest Direction = "newest"
	Oldest Direction = "oldest"
)

// ParseDirection maps a raw query value to a Direction, defaulting to Newest.
func ParseDirection(raw string) Direction {
	if Direction(raw) == Oldest {
		return Oldest
	}
	return Newest
}

var priorityWeights = map[domain.Priority]int{
	domain.PriorityCritical: 4,
	domain.PriorityHigh:     3,
	domain.PriorityNormal:   2,
	domain.PriorityLow:      1,
}

// Weight returns the priority weight; unknown or missing priorities weigh 0.
func Weight(p *domain.Priority) int {
	if p == nil {
		return 0
	}
	return priorityWeights[*p]
}

// Key is the orderable rank of a single item.
type Key struct {
	Weight    int
	Timestamp time.Time
}

// Rank computes the key of an item. Ideas carry no weight: difficulty is a
// gate, not a sort key. A nil item has the zero key.
func Rank(item *domain.WorkflowItem) Key {
	if item == nil {
		return Key{}
	}
	key := Key{Timestamp: item.CreatedAt}
	if item.Kind == domain.KindIncident {
		key.Weight = Weight(item.Priority)
	}
	return key
}

// Less reports whether a ranks strictly before b for the given direction.
func Less(a, b Key, dir Direction) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	if dir == Oldest {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Timestamp.After(b.Timestamp)
}

// Sort returns a ranked copy of items with nil entries dropped. Items equal
// on both keys keep their input order.
func Sort(items []*domain.WorkflowItem, dir Direction) []*domain.WorkflowItem {
	out := make([]*domain.WorkflowItem, 0, len(items))
	keys := make(map[*domain.WorkflowItem]Key, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, it)
		keys[it] = Rank(it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Less(keys[out[i]], keys[out[j]], dir)
	})
	return out
}

// NextForAssignment returns the highest ranked pending incident, preferring
// the oldest report within equal weight. It returns nil when nothing is eligible.
func NextForAssignment(items []*domain.WorkflowItem) *domain.WorkflowItem {
	var best *domain.WorkflowItem
	var bestKey Key
	for _, it := range items {
		if it == nil || it.Kind != domain.KindIncident || it.Status != domain.StatusPending || it.Escalated {
			continue
		}
		key := Rank(it)
		if best == nil || Less(key, bestKey, Oldest) {
			best, bestKey = it, key
		}
	}
	return best
}
