// Package intentstatus defines the typed sum for an intent's lifecycle
// status and its DAG of valid transitions.
package intentstatus

import "fmt"

// Status is a closed set of intent lifecycle states, persisted as short
// lowercase tokens at the database boundary.
type Status int

const (
	Created Status = iota
	Committed
	Registered
	Filled
	SolverPaid
	UserClaimed
	Expired
	Refunded
	Failed
)

var names = map[Status]string{
	Created:     "created",
	Committed:   "committed",
	Registered:  "registered",
	Filled:      "filled",
	SolverPaid:  "solver_paid",
	UserClaimed: "user_claimed",
	Expired:     "expired",
	Refunded:    "refunded",
	Failed:      "failed",
}

var fromName = func() map[string]Status {
	m := make(map[string]Status, len(names))
	for s, n := range names {
		m[n] = s
	}
	return m
}()

// String renders the status as its persisted token. Every member of the
// closed set has an entry here; there is no silent fallthrough.
func (s Status) String() string {
	n, ok := names[s]
	if !ok {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return n
}

// Parse is the exact inverse of String for every status in the closed set.
// Earlier tooling in this codebase's lineage dropped several variants here
// (Committed, Registered, SolverPaid, UserClaimed, Expired), silently
// downgrading them to Failed on read; Parse instead errors loudly on any
// token it doesn't recognize so a bug surfaces immediately instead of
// corrupting intent state.
func Parse(token string) (Status, error) {
	s, ok := fromName[token]
	if !ok {
		return 0, fmt.Errorf("intentstatus: unrecognized status token %q", token)
	}
	return s, nil
}

// edges enumerates the DAG from spec §4.5. There are no back-edges: every
// entry's targets are states with no path back to the source.
var edges = map[Status][]Status{
	Created:     {Committed},
	Committed:   {Registered, Expired, Failed},
	Registered:  {Filled, Expired, Failed},
	Filled:      {SolverPaid, Expired, Failed},
	SolverPaid:  {UserClaimed, Failed},
	UserClaimed: {},
	Expired:     {Refunded, Failed},
	Refunded:    {},
	Failed:      {},
}

// CanTransition reports whether moving from 'from' to 'to' is a valid edge
// in the status DAG (P6: status monotonicity, no back-edges).
func CanTransition(from, to Status) bool {
	for _, candidate := range edges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(s Status) bool {
	return len(edges[s]) == 0
}
