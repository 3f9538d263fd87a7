package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// errBadSessionData marks a session whose uploaded content is unusable. The
// session is discarded rather than retried.
type errBadSessionData struct {
	reason string
}

func (e *errBadSessionData) Error() string { return e.reason }

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperOutput struct {
	Segments []whisperSegment `json:"segments"`
}

// transcribe runs the speech-to-text engine over every audio track that does
// not already have a transcript. A track's transcript file is the idempotence
// marker: restarting after a crash only re-processes missing tracks.
func (p *implPipeline) transcribe(ctx context.Context, s *Session) error {
	tracks, err := filepath.Glob(filepath.Join(s.Dir, "*.flac"))
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return &errBadSessionData{reason: "no audio tracks in session"}
	}
	sort.Strings(tracks)

	if err := os.MkdirAll(s.transcriptsDir(), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(s.progressDir(), 0755); err != nil {
		return err
	}

	for _, track := range tracks {
		user := usernameFromTrack(track)
		outPath := filepath.Join(s.transcriptsDir(), user+"_transcript.txt")
		if fileExists(outPath) {
			continue
		}

		p.logger.Info(ctx, "Transcribing %s (%s)", filepath.Base(track), user)
		stdout, err := p.executor.Execute(ctx, p.cfg.Whisper.BinaryPath, p.whisperArgs(track)...)
		if err != nil {
			return fmt.Errorf("transcription engine on %s: %w", filepath.Base(track), err)
		}

		var out whisperOutput
		if err := json.Unmarshal([]byte(stdout), &out); err != nil {
			return fmt.Errorf("parse engine output for %s: %w", filepath.Base(track), err)
		}

		if err := writeTrackTranscript(outPath, user, out.Segments); err != nil {
			return err
		}
		p.appendProgress(s, fmt.Sprintf("transcribed %s: %d segments", filepath.Base(track), len(out.Segments)))
	}

	return nil
}

func (p *implPipeline) whisperArgs(track string) []string {
	w := p.cfg.Whisper
	args := []string{
		track,
		"--model", w.Model,
		"--language", w.Language,
		"--compute_type", w.ComputeType,
		"--batch_size", strconv.Itoa(w.BatchSize),
		"--beam_size", strconv.Itoa(w.BeamSize),
		"--vad_method", w.VADMethod,
		"--vad_onset", strconv.FormatFloat(w.VADOnset, 'f', -1, 64),
		"--vad_offset", strconv.FormatFloat(w.VADOffset, 'f', -1, 64),
		"--output_format", "json",
	}
	if w.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(w.Threads))
	}
	if w.ChunkSize > 0 {
		args = append(args, "--chunk_size", strconv.Itoa(w.ChunkSize))
	}
	return args
}

// usernameFromTrack recovers the speaker name from a Craig track filename,
// which is "<trackno>-<username>.flac".
func usernameFromTrack(track string) string {
	base := filepath.Base(track)
	_, rest, found := strings.Cut(base, "-")
	if !found {
		return "Unknown"
	}
	if i := strings.LastIndex(rest, "."); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "Unknown"
	}
	return rest
}

// writeTrackTranscript renders one speaker's segments as timestamped lines,
// "[hh:mm:ss] user: text", one per segment.
func writeTrackTranscript(path, user string, segments []whisperSegment) error {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatTimestamp(seg.Start), user, text)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// appendProgress records a processing note in the session's progress log.
// Best effort.
func (p *implPipeline) appendProgress(s *Session, note string) {
	path := filepath.Join(s.progressDir(), "processing.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, note)
}
