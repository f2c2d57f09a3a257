package quanta

type (
	// Alert is a problem noticed on the render goroutine, reported to whoever
	// drives the host. The render goroutine never logs or blocks; it hands
	// alerts over and forgets them.
	Alert struct {
		Name     string
		Priority AlertPriority
		Message  string
	}

	AlertPriority int

	// Alerter receives alerts. Alert is called on the render goroutine and
	// must not block; dropping alerts is fine.
	Alerter interface {
		Alert(a Alert)
	}

	// AlertReporter is implemented by nodes that raise alerts. The host calls
	// ReportAlertsTo when the node is connected.
	AlertReporter interface {
		ReportAlertsTo(a Alerter)
	}
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

func (p AlertPriority) String() string {
	switch p {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}
