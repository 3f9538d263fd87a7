package session

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// discover scans the upload directory (non-recursively) for new session
// archives and turns each into a date-keyed work directory. Bad archives are
// logged and discarded; discovery always continues with the next candidate.
func (p *implPipeline) discover(ctx context.Context) error {
	entries, err := os.ReadDir(p.cfg.Paths.Upload)
	if err != nil {
		return fmt.Errorf("scan upload dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}

		archivePath := filepath.Join(p.cfg.Paths.Upload, e.Name())

		claimed, err := p.archiveClaimed(e.Name())
		if err != nil {
			return err
		}
		if claimed {
			continue // unpacked in an earlier cycle, still processing
		}

		if err := p.waitForStableSize(ctx, archivePath); err != nil {
			p.logger.Warn(ctx, "Skipping %s: %v", e.Name(), err)
			continue
		}

		if err := p.intake(ctx, archivePath); err != nil {
			p.logger.Error(ctx, "Discarding archive %s: %v", e.Name(), err)
		}
	}

	return nil
}

// archiveClaimed reports whether an existing work directory already recorded
// this archive as its source.
func (p *implPipeline) archiveClaimed(archiveName string) (bool, error) {
	sessions, err := loadSessions(p.cfg.Paths.Sessions)
	if err != nil {
		return false, fmt.Errorf("enumerate sessions: %w", err)
	}
	for _, s := range sessions {
		raw, err := os.ReadFile(s.sourceArchivePath())
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(raw)) == archiveName {
			return true, nil
		}
	}
	return false, nil
}

// waitForStableSize samples the archive size until two consecutive samples
// agree, so an archive still being uploaded is not unpacked half-written.
func (p *implPipeline) waitForStableSize(ctx context.Context, path string) error {
	last := int64(-1)
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat archive: %w", err)
		}
		if info.Size() == last {
			return nil
		}
		last = info.Size()

		select {
		case <-time.After(p.stableDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// intake unpacks one archive into a scratch directory, resolves its session
// date, and promotes the scratch directory to the canonical per-date work
// directory. Any failure discards the scratch directory.
func (p *implPipeline) intake(ctx context.Context, archivePath string) error {
	archiveName := filepath.Base(archivePath)
	scratch := filepath.Join(p.cfg.Paths.Sessions, strings.TrimSuffix(archiveName, filepath.Ext(archiveName)))

	if err := unzip(archivePath, scratch); err != nil {
		os.RemoveAll(scratch)
		p.removeArchive(ctx, archivePath)
		return fmt.Errorf("unpack: %w", err)
	}

	// Craig archives ship a raw blob nothing downstream needs.
	os.Remove(filepath.Join(scratch, "raw.dat"))

	startTime, err := parseSessionStart(filepath.Join(scratch, infoFileName))
	if err != nil {
		os.RemoveAll(scratch)
		p.removeArchive(ctx, archivePath)
		return err
	}

	date := startTime.In(time.Local)
	target := filepath.Join(p.cfg.Paths.Sessions, date.Format(dateKeyLayout))

	if fileExists(target) {
		// A session for this date is already in progress; it is
		// authoritative and the duplicate is discarded.
		os.RemoveAll(scratch)
		p.removeArchive(ctx, archivePath)
		return fmt.Errorf("duplicate session for %s", date.Format(dateKeyLayout))
	}

	if err := os.Rename(scratch, target); err != nil {
		os.RemoveAll(scratch)
		return fmt.Errorf("promote work dir: %w", err)
	}

	// The archive outlives this function; record its name so cleanup can
	// find it after delivery.
	sess := &Session{Dir: target, Date: date}
	if err := os.WriteFile(sess.sourceArchivePath(), []byte(archiveName+"\n"), 0644); err != nil {
		return fmt.Errorf("record source archive: %w", err)
	}
	storeState(sess, StateTranscribing)

	p.logger.Info(ctx, "New session %s from %s", sess.Key(), archiveName)
	return nil
}

func (p *implPipeline) removeArchive(ctx context.Context, archivePath string) {
	if err := os.Remove(archivePath); err != nil {
		p.logger.Warn(ctx, "Failed to remove archive %s: %v", archivePath, err)
	}
}

// parseSessionStart extracts the "Start time:" field from the recording
// metadata. A missing file or unparseable time is a data error for this
// archive only.
func parseSessionStart(infoPath string) (time.Time, error) {
	raw, err := os.ReadFile(infoPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("session metadata: %w", err)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		value, found := strings.CutPrefix(strings.TrimSpace(line), "Start time:")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse start time %q: %w", value, err)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("session metadata has no start time")
}

// unzip extracts an archive, refusing entries that would escape the
// destination directory.
func unzip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	if len(r.File) == 0 {
		return fmt.Errorf("archive is empty")
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	for _, f := range r.File {
		path := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := extractFile(f, path); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractFile(f *zip.File, path string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
