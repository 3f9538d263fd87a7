package session

import (
	"os"
	"path/filepath"
)

// State is the explicit per-session progress record. It mirrors the stage
// artifacts rather than replacing them: what exists on disk always decides
// where processing resumes, so a crash between writing an artifact and
// recording the state never skips or repeats the wrong stage. The persisted
// state file gives operators a single readable status field.
type State int

const (
	StateTranscribing State = iota
	StateMerging
	StateSummarizing
	StateDelivering
	StateFinalizing
	StateArchived
)

var stateNames = map[State]string{
	StateTranscribing: "transcribing",
	StateMerging:      "merging",
	StateSummarizing:  "summarizing",
	StateDelivering:   "delivering",
	StateFinalizing:   "finalizing",
	StateArchived:     "archived",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// deriveState reads the session's artifacts and returns the furthest stage
// they prove complete.
func deriveState(s *Session) State {
	switch {
	case fileExists(s.completedPath()):
		return StateArchived
	case fileExists(s.deliveredPath()):
		return StateFinalizing
	case fileExists(s.recapPath()):
		return StateDelivering
	case fileExists(s.masterTranscriptPath()):
		return StateSummarizing
	default:
		return StateTranscribing
	}
}

// storeState persists the status record. Best effort: the artifacts remain
// the source of truth.
func storeState(s *Session, state State) {
	os.WriteFile(s.statePath(), []byte(state.String()+"\n"), 0644)
}

func (s *Session) statePath() string {
	return filepath.Join(s.Dir, stateFileName)
}
