package session

import (
	"os"
	"path/filepath"
	"time"
)

// Work directory layout. Each session lives in a directory named after its
// local calendar date; stage outputs double as completion markers so a
// crashed run resumes where it left off.
const (
	dateKeyLayout = "2006-01-02"

	infoFileName      = "info.txt"
	sourceArchiveFile = "source_archive.txt"
	stateFileName     = "state"

	progressDirName    = "progress"
	transcriptsDirName = "transcripts"

	masterTranscriptFile = "session_transcript.txt"
	recapFile            = "session_recap.txt"
	recapDocxFile        = "session_recap.docx"

	deliveredMarker = "delivered"
	completedMarker = "completed"
)

// Session is one recorded event, keyed by its local calendar date.
type Session struct {
	Dir  string
	Date time.Time
}

// Key is the date key the work directory is named after.
func (s *Session) Key() string {
	return s.Date.Format(dateKeyLayout)
}

func (s *Session) infoPath() string             { return filepath.Join(s.Dir, infoFileName) }
func (s *Session) sourceArchivePath() string    { return filepath.Join(s.Dir, sourceArchiveFile) }
func (s *Session) progressDir() string          { return filepath.Join(s.Dir, progressDirName) }
func (s *Session) transcriptsDir() string       { return filepath.Join(s.Dir, transcriptsDirName) }
func (s *Session) masterTranscriptPath() string { return filepath.Join(s.Dir, masterTranscriptFile) }
func (s *Session) recapPath() string            { return filepath.Join(s.Dir, recapFile) }
func (s *Session) recapDocxPath() string        { return filepath.Join(s.Dir, recapDocxFile) }
func (s *Session) deliveredPath() string        { return filepath.Join(s.Dir, deliveredMarker) }
func (s *Session) completedPath() string        { return filepath.Join(s.Dir, completedMarker) }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadSessions enumerates date-named work directories that have not reached
// the Archived state yet.
func loadSessions(sessionsDir string) ([]*Session, error) {
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []*Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		date, err := time.ParseInLocation(dateKeyLayout, e.Name(), time.Local)
		if err != nil {
			continue // not a work directory
		}
		s := &Session{Dir: filepath.Join(sessionsDir, e.Name()), Date: date}
		if fileExists(s.completedPath()) {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
