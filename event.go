package quanta

type (
	// Event is a command scheduled at an absolute context time. Seq is
	// assigned when the event is enqueued and only breaks ties between events
	// with identical times: among those, the one enqueued first is applied
	// first.
	Event[P any] struct {
		Time    float64
		Seq     uint64
		Payload P
	}

	// Payload is the constraint for the command types carried by events. The
	// scheduling core never looks inside a payload, except to recognize the
	// variant that clears everything scheduled before it.
	Payload interface {
		IsClear() bool
	}
)

// Less reports whether e must be applied before o.
func (e Event[P]) Less(o Event[P]) bool {
	if e.Time != o.Time {
		return e.Time < o.Time
	}
	return e.Seq < o.Seq
}
