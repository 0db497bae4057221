package orders

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no transition out of s exists.
func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// AssertMutable fails with a *TransitionError when the order already reached a terminal status.
func AssertMutable(o *Order) error {
	switch o.Status {
	case StatusCancelled, StatusPaid:
		return &TransitionError{OrderID: o.ID, Status: o.Status}
	}
	return nil
}
