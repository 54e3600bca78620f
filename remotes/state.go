package remotes

// State tracks one retrieval key through its lifecycle. Only Verified
// artifacts are handed to extraction.
type State int

const (
	NotStarted State = iota
	InProgress
	Verified
	ChecksumMismatch
	NetworkFailed
	Restricted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Verified:
		return "verified"
	case ChecksumMismatch:
		return "checksum_mismatch"
	case NetworkFailed:
		return "network_failed"
	case Restricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// Outcome is the terminal record for one retrieval key.
type Outcome struct {
	Key   string
	State State

	// Paths holds the local artifact paths, in part order, for Verified
	// keys.
	Paths []string

	// AlreadyPresent is set when every part was found on disk with a
	// matching checksum, meaning no network transfer happened.
	AlreadyPresent bool

	Err error
}
