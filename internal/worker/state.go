package worker

// State is a task lifecycle position.
type State int

const (
	StateCreated State = iota
	StateTempDirReady
	StateFramesWritten
	StateProcessRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateTempDirReady:
		return "temp_dir_ready"
	case StateFramesWritten:
		return "frames_written"
	case StateProcessRunning:
		return "process_running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
