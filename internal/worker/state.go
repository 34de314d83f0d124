package worker

// State is a connection worker lifecycle state.
type State int32

const (
	Connecting State = iota
	Active
	Closing
	Done
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Active:
		return "Active"
	case Closing:
		return "Closing"
	case Done:
		return "Done"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the worker has finished.
func (s State) Terminal() bool {
	return s == Done || s == Errored
}
