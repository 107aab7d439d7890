package orchestrator

// State is a phase of a game run.
type State int

const (
	AwaitingBackendChoice State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingBackendChoice:
		return "awaiting_backend_choice"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
