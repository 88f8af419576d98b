package domain

import "time"

// Department is a forwarding target for sensitive ideas. ID is the short
// code used in payloads, e.g. "HR".
type Department struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary holds item counts per kind and status.
type Summary struct {
	Counts      map[Kind]map[Status]int
	GeneratedAt time.Time
}

// Total returns the number of items of a kind across all statuses.
func (s Summary) Total(kind Kind) int {
	total := 0
	for _, n := range s.Counts[kind] {
		total += n
	}
	return total
}
