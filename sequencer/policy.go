package sequencer

import (
	"fmt"
	"sort"
	"strings"
)

// PolicyKind selects how a toggle claims a voice slot.
type PolicyKind string

const (
	// PolicyLIFO keeps slot 0 as the most recently activated voice and evicts
	// it on overflow.
	PolicyLIFO PolicyKind = "lifo"
	// PolicyFIFO keeps slots as a queue and evicts the oldest voice on overflow.
	PolicyFIFO PolicyKind = "fifo"
	// PolicyReplaceLast deactivates the highest active row on overflow.
	PolicyReplaceLast PolicyKind = "replace-last"
	// PolicyRefuse ignores activations once the column is full.
	PolicyRefuse PolicyKind = "refuse"
)

// Policies lists every supported kind.
func Policies() []PolicyKind {
	return []PolicyKind{PolicyLIFO, PolicyFIFO, PolicyReplaceLast, PolicyRefuse}
}

// ParsePolicyKind accepts the names above, case-insensitively.
func ParsePolicyKind(s string) (PolicyKind, error) {
	k := PolicyKind(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range Policies() {
		if k == p {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown voice policy %q", s)
}

// Policy computes the next slot list for a toggle. Implementations never
// modify their input. changed is false when the toggle is a no-op.
type Policy interface {
	Toggle(slots Column, row int) (next Column, changed bool)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(slots Column, row int) (Column, bool)

func (f PolicyFunc) Toggle(slots Column, row int) (Column, bool) { return f(slots, row) }

// PolicyFor returns the strategy for a kind. Unknown kinds fall back to LIFO.
func PolicyFor(kind PolicyKind) Policy {
	switch kind {
	case PolicyFIFO:
		return PolicyFunc(ToggleFIFO)
	case PolicyReplaceLast:
		return PolicyFunc(ToggleReplaceLast)
	case PolicyRefuse:
		return PolicyFunc(ToggleRefuse)
	default:
		return PolicyFunc(ToggleLIFO)
	}
}

// ToggleLIFO removes row if present, leaving its slot empty. Otherwise row
// goes into slot 0 and the previous slot-0 voice moves to the first empty
// slot; a full column has slot 0 overwritten.
func ToggleLIFO(slots Column, row int) (Column, bool) {
	next := slots.Clone()
	if len(next) == 0 {
		return next, false
	}
	for i, v := range next {
		if v == row {
			next[i] = Empty
			return next, true
		}
	}
	for i, v := range next {
		if v == Empty {
			next[i] = next[0]
			next[0] = row
			return next, true
		}
	}
	next[0] = row
	return next, true
}

// ToggleFIFO treats the slots as a queue, oldest first.
func ToggleFIFO(slots Column, row int) (Column, bool) {
	voices := len(slots)
	if voices == 0 {
		return slots.Clone(), false
	}
	queue := slots.Active()
	for i, v := range queue {
		if v == row {
			queue = append(queue[:i], queue[i+1:]...)
			return padded(queue, voices), true
		}
	}
	if len(queue) == voices {
		queue = queue[1:]
	}
	queue = append(queue, row)
	return padded(queue, voices), true
}

// ToggleReplaceLast activates row and, when that exceeds capacity, drops the
// previously active row with the highest index. Slots come back in ascending
// row order.
func ToggleReplaceLast(slots Column, row int) (Column, bool) {
	voices := len(slots)
	if voices == 0 {
		return slots.Clone(), false
	}
	active := slots.Active()
	for i, v := range active {
		if v == row {
			active = append(active[:i], active[i+1:]...)
			sort.Ints(active)
			return padded(active, voices), true
		}
	}
	sort.Ints(active)
	if len(active) == voices {
		active = active[:len(active)-1]
	}
	active = append(active, row)
	sort.Ints(active)
	return padded(active, voices), true
}

// ToggleRefuse behaves like ToggleReplaceLast but reports no change instead
// of evicting.
func ToggleRefuse(slots Column, row int) (Column, bool) {
	if !slots.Has(row) && len(slots.Active()) >= len(slots) {
		return slots.Clone(), false
	}
	return ToggleReplaceLast(slots, row)
}

func padded(rows []int, voices int) Column {
	c := EmptyColumn(voices)
	copy(c, rows)
	return c
}
