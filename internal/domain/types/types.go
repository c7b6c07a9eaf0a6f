// Package types contains the value types shared between the domain and the API.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the categorical bucket a score resolves to.
type Status string

// Statuses in display order, best first. Pending is both the default and a
// legitimate outcome when a mark carries no numeric signal.
const (
	StatusExcellent        Status = "Excellent"
	StatusGood             Status = "Good"
	StatusSatisfactory     Status = "Satisfactory"
	StatusNeedsImprovement Status = "Needs Improvement"
	StatusUnsatisfactory   Status = "Unsatisfactory"
	StatusPending          Status = "Pending"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusExcellent,
	StatusGood,
	StatusSatisfactory,
	StatusNeedsImprovement,
	StatusUnsatisfactory,
	StatusPending,
}

// Rank returns the position of s in display order; unknown values sort last.
func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return len(Statuses)
}

// Valid reports whether s is one of the six known statuses.
func (s Status) Valid() bool {
	return s.Rank() < len(Statuses)
}

func (s Status) String() string { return string(s) }

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	for _, s := range Statuses {
		if strings.EqualFold(string(s), v) {
			return s, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown status %q", v)
}

// StatusCounts tallies how many students landed in each status.
type StatusCounts map[Status]int

// NewStatusCounts returns counts with every status present at zero.
func NewStatusCounts() StatusCounts {
	c := make(StatusCounts, len(Statuses))
	for _, s := range Statuses {
		c[s] = 0
	}
	return c
}

// Add records one occurrence of s. Unknown statuses count as Pending.
func (c StatusCounts) Add(s Status) {
	if !s.Valid() {
		s = StatusPending
	}
	c[s]++
}

// Total returns the number of recorded occurrences.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// MarshalJSON writes the counts in display order.
func (c StatusCounts) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, s := range Statuses {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(string(s))
		if err != nil {
			return nil, err
		}
		b.Write(key)
		fmt.Fprintf(&b, ":%d", c[s])
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
