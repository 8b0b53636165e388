package reachability

import "context"

// EventKind tags a state-change notification.
type EventKind int

const (
	EventRequest EventKind = iota // probe issued, IsLoading is true
	EventSuccess                  // probe completed, endpoint reachable
	EventFailure                  // probe completed, endpoint unreachable
)

func (k EventKind) String() string {
	switch k {
	case EventRequest:
		return "request"
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is emitted twice per probe: once when it is issued and once with its outcome.
type Event struct {
	Kind   EventKind
	Action string // configured action name for Kind, may be empty
	State  Snapshot
}

// Notifier receives monitor events. Deliveries are serialised on the probe
// goroutine, so an implementation must not call the Monitor's Close, which
// waits for that goroutine to return.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Notifiers fans an event out to every member in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Action is a named outcome delivered by ActionDispatcher.
type Action struct {
	Type  string
	State Snapshot
}

// ActionDispatcher returns a Notifier that forwards events as named actions.
// Events whose kind has no configured name are dropped.
func ActionDispatcher(names ActionNames, dispatch func(ctx context.Context, a Action)) Notifier {
	return NotifierFunc(func(ctx context.Context, ev Event) {
		name := names.name(ev.Kind)
		if name == "" {
			return
		}
		dispatch(ctx, Action{Type: name, State: ev.State})
	})
}

func (n ActionNames) name(k EventKind) string {
	switch k {
	case EventRequest:
		return n.Request
	case EventSuccess:
		return n.Success
	case EventFailure:
		return n.Failure
	default:
		return ""
	}
}
