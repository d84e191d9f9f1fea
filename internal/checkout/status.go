package checkout

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusExpired Status = "expired"
)

var validNext = map[Status]map[Status]bool{
	StatusPending: {StatusDone: true, StatusExpired: true},
	StatusDone:    {},
	StatusExpired: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// presentStatus is the status a reader sees at now. A pending transaction past
// the payment window reads as expired. A stored expired one younger than grace
// reads as pending; that correction is display-only and never reaches payment.
func presentStatus(stored Status, createdAt, now time.Time, window, grace time.Duration) Status {
	age := now.Sub(createdAt)
	switch {
	case stored == StatusPending && age >= window:
		return StatusExpired
	case stored == StatusExpired && age < grace:
		return StatusPending
	}
	return stored
}
