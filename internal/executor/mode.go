package executor

import "fmt"

// Mode is the collaboration strategy for a workflow run.
type Mode int

const (
	ModeParallel Mode = iota
	ModeSequential
	ModeVoting
)

func (m Mode) String() string {
	switch m {
	case ModeParallel:
		return "parallel"
	case ModeSequential:
		return "sequential"
	case ModeVoting:
		return "voting"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a mode name to a Mode. Unknown names fail immediately,
// before any execution starts.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "parallel":
		return ModeParallel, nil
	case "sequential":
		return ModeSequential, nil
	case "voting":
		return ModeVoting, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}
