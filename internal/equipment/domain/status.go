package domain

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRented    Status = "rented"
	StatusExternal  Status = "external"
	StatusInService Status = "in_service"
	StatusInactive  Status = "inactive"
)

var ownedTransitions = map[Status]map[Status]struct{}{
	StatusIdle: {
		StatusRented:    {},
		StatusInService: {},
		StatusInactive:  {},
	},
	StatusRented:    {StatusIdle: {}},
	StatusInService: {StatusIdle: {}},
	StatusInactive:  {StatusIdle: {}},
}

var externalTransitions = map[Status]map[Status]struct{}{
	StatusExternal: {
		StatusRented:   {},
		StatusInactive: {},
	},
	StatusRented:   {StatusExternal: {}},
	StatusInactive: {StatusExternal: {}},
}

// CanTransition reports whether from -> to is an edge of the owned-fleet or
// external state machine.
func CanTransition(external bool, from, to Status) bool {
	edges := ownedTransitions
	if external {
		edges = externalTransitions
	}
	_, ok := edges[from][to]
	return ok
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRented, StatusExternal, StatusInService, StatusInactive:
		return true
	}
	return false
}
