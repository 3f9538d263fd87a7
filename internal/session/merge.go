package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type transcriptLine struct {
	seconds int
	text    string
}

// merge interleaves all per-speaker transcripts into one master transcript
// ordered by timestamp. Lines with equal timestamps keep a stable lexical
// order so repeated runs produce identical output.
func (p *implPipeline) merge(ctx context.Context, s *Session) error {
	if fileExists(s.masterTranscriptPath()) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(s.transcriptsDir(), "*_transcript.txt"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return &errBadSessionData{reason: "no track transcripts to merge"}
	}
	sort.Strings(files)

	var lines []transcriptLine
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read track transcript: %w", err)
		}
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			secs, ok := parseTimestampPrefix(line)
			if !ok {
				continue
			}
			lines = append(lines, transcriptLine{seconds: secs, text: line})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].seconds != lines[j].seconds {
			return lines[i].seconds < lines[j].seconds
		}
		return lines[i].text < lines[j].text
	})

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.text)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.masterTranscriptPath(), []byte(b.String()), 0644); err != nil {
		return err
	}

	storeState(s, StateSummarizing)
	p.logger.Info(ctx, "Merged %d tracks into master transcript for %s (%d lines)", len(files), s.Key(), len(lines))
	return nil
}

// parseTimestampPrefix extracts the leading "[hh:mm:ss]" as seconds.
func parseTimestampPrefix(line string) (int, bool) {
	if len(line) < 10 || line[0] != '[' || line[9] != ']' {
		return 0, false
	}
	stamp := line[1:9]
	if stamp[2] != ':' || stamp[5] != ':' {
		return 0, false
	}
	var h, m, s int
	if _, err := fmt.Sscanf(stamp, "%02d:%02d:%02d", &h, &m, &s); err != nil {
		return 0, false
	}
	return h*3600 + m*60 + s, true
}
