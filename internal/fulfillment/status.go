package fulfillment

import "github.com/tournevent/fulfillment/pkg/shipper"

// Status is the lifecycle state of a shipment.
type Status = shipper.ShipmentStatus

// Canonical ordering of the forward path. Cancelled sits outside it.
var statusRank = map[Status]int{
	shipper.StatusDraft:          0,
	shipper.StatusAwaitingPickup: 1,
	shipper.StatusPickedUp:       2,
	shipper.StatusInTransit:      3,
	shipper.StatusOutForDelivery: 4,
	shipper.StatusDeliveryFailed: 5,
	shipper.StatusReturning:      6,
	shipper.StatusDelivered:      7,
	shipper.StatusReturned:       7,
}

var successors = map[Status][]Status{
	shipper.StatusDraft: {
		shipper.StatusAwaitingPickup, shipper.StatusCancelled,
	},
	shipper.StatusAwaitingPickup: {
		shipper.StatusPickedUp, shipper.StatusInTransit, shipper.StatusOutForDelivery,
		shipper.StatusDelivered, shipper.StatusDeliveryFailed, shipper.StatusReturning,
		shipper.StatusCancelled,
	},
	shipper.StatusPickedUp: {
		shipper.StatusInTransit, shipper.StatusOutForDelivery, shipper.StatusDelivered,
		shipper.StatusDeliveryFailed, shipper.StatusReturning, shipper.StatusCancelled,
	},
	shipper.StatusInTransit: {
		shipper.StatusOutForDelivery, shipper.StatusDelivered, shipper.StatusDeliveryFailed,
		shipper.StatusReturning, shipper.StatusCancelled,
	},
	shipper.StatusOutForDelivery: {
		shipper.StatusDelivered, shipper.StatusDeliveryFailed, shipper.StatusReturning,
		shipper.StatusCancelled,
	},
	shipper.StatusDeliveryFailed: {
		shipper.StatusDelivered, shipper.StatusReturning, shipper.StatusReturned,
		shipper.StatusCancelled,
	},
	shipper.StatusReturning: {
		shipper.StatusReturned, shipper.StatusCancelled,
	},
}

// IsTerminal reports whether no transition may leave s.
func IsTerminal(s Status) bool {
	switch s {
	case shipper.StatusDelivered, shipper.StatusCancelled, shipper.StatusReturned:
		return true
	}
	return false
}

// CanTransition reports whether to is an allowed successor of from.
func CanTransition(from, to Status) bool {
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Successors returns the allowed successors of s.
func Successors(s Status) []Status {
	out := make([]Status, len(successors[s]))
	copy(out, successors[s])
	return out
}

// isRegressive reports whether to describes an earlier stage than from.
// Only statuses on the forward path are comparable.
func isRegressive(from, to Status) bool {
	rf, okFrom := statusRank[from]
	rt, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return rt < rf
}

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s Status) bool {
	_, ranked := statusRank[s]
	return ranked || s == shipper.StatusCancelled
}
