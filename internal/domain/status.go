package domain

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCancelled Status = "cancelled"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleKitchen Role = "kitchen"
	RoleWaiter  Role = "waiter"
	RoleClient  Role = "client"
)

// Statuses lists every recognized status in lifecycle order.
var Statuses = []Status{StatusPending, StatusApproved, StatusReady, StatusServed, StatusCancelled}

// Roles lists every acting role.
var Roles = []Role{RoleAdmin, RoleKitchen, RoleWaiter, RoleClient}

func ValidStatus(s Status) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// transitions is the status graph with the roles authorized per edge.
// The graph is strictly linear (pending → approved → ready → served) with a
// single cancellation edge out of pending. Admin may take any edge; kitchen
// and waiter each own exactly one; the ordering client may only cancel its
// own pending order.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusApproved:  {RoleAdmin},
		StatusCancelled: {RoleAdmin, RoleClient},
	},
	StatusApproved: {
		StatusReady: {RoleAdmin, RoleKitchen},
	},
	StatusReady: {
		StatusServed: {RoleAdmin, RoleWaiter},
	},
}

// CanTransition reports whether role may move an order from one status to
// another. Pure function, no side effects. The graph check runs before the
// role check, so an edge that does not exist at all reports
// INVALID_TRANSITION even for an unauthorized role.
func CanTransition(role Role, from, to Status) error {
	if !ValidStatus(from) || !ValidStatus(to) {
		return ErrInvalidStatus
	}
	edges, ok := transitions[from]
	if !ok {
		return ErrInvalidTransition
	}
	roles, ok := edges[to]
	if !ok {
		return ErrInvalidTransition
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return ErrForbiddenTransition
}

// Terminal reports whether a status ends the order lifecycle.
func Terminal(s Status) bool {
	return s == StatusServed || s == StatusCancelled
}
