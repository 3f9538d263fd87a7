package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jvreeland/questlog/internal/recap"
)

const defaultPrompt = "Summarize this DnD session."

const scriptTimeout = 5 * time.Minute

// RunCycle is one poll: pick up new archives, then push every pending
// session as far forward as it can go.
func (p *implPipeline) RunCycle(ctx context.Context) error {
	if err := p.discover(ctx); err != nil {
		return err
	}

	sessions, err := loadSessions(p.cfg.Paths.Sessions)
	if err != nil {
		return fmt.Errorf("enumerate sessions: %w", err)
	}

	for _, s := range sessions {
		if err := p.advance(ctx, s); err != nil {
			var bad *errBadSessionData
			if errors.As(err, &bad) {
				p.logger.Error(ctx, "Discarding session %s: %s", s.Key(), bad.reason)
				p.discard(ctx, s)
				continue
			}
			return fmt.Errorf("session %s: %w", s.Key(), err)
		}
	}

	return nil
}

// advance runs the remaining stages for one session. A nil return means the
// session either finished or is waiting for a retryable step (summarization)
// to succeed on a later cycle.
func (p *implPipeline) advance(ctx context.Context, s *Session) error {
	state := deriveState(s)
	p.logger.Debug(ctx, "Session %s is %s", s.Key(), state)

	if state <= StateMerging {
		storeState(s, StateTranscribing)
		if err := p.transcribe(ctx, s); err != nil {
			return err
		}
		storeState(s, StateMerging)
		if err := p.merge(ctx, s); err != nil {
			return err
		}
	}

	if !fileExists(s.recapPath()) {
		done, err := p.summarize(ctx, s)
		if err != nil {
			return err
		}
		if !done {
			return nil // retry next cycle
		}
	}

	if !fileExists(s.deliveredPath()) {
		storeState(s, StateDelivering)
		if err := p.deliver(ctx, s); err != nil {
			return err
		}
	}

	storeState(s, StateFinalizing)
	return p.finalize(ctx, s)
}

// summarize generates the recap. Provider failures are not fatal: the
// session stays pending and the call is retried on the next cycle.
func (p *implPipeline) summarize(ctx context.Context, s *Session) (bool, error) {
	prompt := p.cfg.LLM.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	result, err := p.provider.Summarize(ctx, s.masterTranscriptPath(), prompt)
	if err != nil {
		p.logger.Error(ctx, "Summarization of %s failed, will retry: %v", s.Key(), err)
		return false, nil
	}

	content := recap.Compose(s.Date, result)
	if err := os.WriteFile(s.recapPath(), []byte(content), 0644); err != nil {
		return false, fmt.Errorf("write recap: %w", err)
	}

	if p.cfg.Recap.ExportDocx {
		if err := recap.ExportDocx(recap.Title(s.Date), content, s.recapDocxPath()); err != nil {
			p.logger.Warn(ctx, "Docx export for %s failed: %v", s.Key(), err)
		}
	}

	p.appendProgress(s, fmt.Sprintf("recap generated by %s/%s", result.Provider, result.Model))
	p.logger.Info(ctx, "Recap for %s ready (%s, %d tokens)", s.Key(), result.Provider, result.Usage.TotalTokens)
	return true, nil
}

// deliver posts the recap. A failure partway through a multi-chunk post is
// fatal: retrying blind would duplicate the chunks already sent, so an
// operator has to look at the channel first.
func (p *implPipeline) deliver(ctx context.Context, s *Session) error {
	content, err := os.ReadFile(s.recapPath())
	if err != nil {
		return fmt.Errorf("read recap: %w", err)
	}

	if err := p.poster.PostRecap(ctx, recap.Title(s.Date), string(content)); err != nil {
		return fmt.Errorf("deliver recap: %w", err)
	}

	if err := os.WriteFile(s.deliveredPath(), []byte(time.Now().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	p.logger.Info(ctx, "Recap for %s delivered", s.Key())
	return nil
}

// finalize runs the post-delivery hooks and retires the session: campaign
// scripts, audio cleanup, archive handling, completion marker.
func (p *implPipeline) finalize(ctx context.Context, s *Session) error {
	p.runScripts(ctx, s)

	if p.cfg.Cleanup.DeleteAudio {
		p.deleteAudio(ctx, s)
	}
	p.retireArchive(ctx, s)

	if err := os.WriteFile(s.completedPath(), []byte(time.Now().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	storeState(s, StateArchived)
	p.logger.Info(ctx, "Session %s completed", s.Key())
	return nil
}

// runScripts invokes each configured campaign script with the recap and
// transcript paths. Scripts are advisory: failures are logged and never
// affect the session outcome.
func (p *implPipeline) runScripts(ctx context.Context, s *Session) {
	for _, script := range p.cfg.Scripts {
		path := script
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.cfg.Paths.Scripts, path)
		}
		if !fileExists(path) {
			p.logger.Warn(ctx, "Script %s not found, skipping", path)
			continue
		}
		os.Chmod(path, 0755)

		scriptCtx, cancel := context.WithTimeout(ctx, scriptTimeout)
		out, err := p.executor.ExecuteInDir(scriptCtx, s.Dir, path, s.recapPath(), s.masterTranscriptPath())
		cancel()
		if err != nil {
			p.logger.Warn(ctx, "Script %s failed: %v", filepath.Base(script), err)
			p.appendProgress(s, fmt.Sprintf("script %s failed: %v", filepath.Base(script), err))
			continue
		}
		p.appendProgress(s, fmt.Sprintf("script %s ok: %s", filepath.Base(script), strings.TrimSpace(out)))
	}
}

func (p *implPipeline) deleteAudio(ctx context.Context, s *Session) {
	tracks, err := filepath.Glob(filepath.Join(s.Dir, "*.flac"))
	if err != nil {
		return
	}
	for _, track := range tracks {
		if err := os.Remove(track); err != nil {
			p.logger.Warn(ctx, "Failed to delete %s: %v", track, err)
		}
	}
}

// retireArchive moves the source zip to the archive directory (prefixed with
// the session date) or deletes it, per configuration.
func (p *implPipeline) retireArchive(ctx context.Context, s *Session) {
	raw, err := os.ReadFile(s.sourceArchivePath())
	if err != nil {
		return // never recorded; nothing to retire
	}
	name := strings.TrimSpace(string(raw))
	src := filepath.Join(p.cfg.Paths.Upload, name)
	if !fileExists(src) {
		return
	}

	if !p.cfg.Cleanup.ArchiveZip {
		p.removeArchive(ctx, src)
		return
	}

	if err := os.MkdirAll(p.cfg.Paths.Archive, 0755); err != nil {
		p.logger.Warn(ctx, "Failed to create archive dir: %v", err)
		return
	}
	dst := filepath.Join(p.cfg.Paths.Archive, s.Key()+"_"+name)
	if err := os.Rename(src, dst); err != nil {
		p.logger.Warn(ctx, "Failed to archive %s: %v", name, err)
	}
}

// discard removes a session with unusable data, along with its source
// archive so it is not rediscovered.
func (p *implPipeline) discard(ctx context.Context, s *Session) {
	if raw, err := os.ReadFile(s.sourceArchivePath()); err == nil {
		src := filepath.Join(p.cfg.Paths.Upload, strings.TrimSpace(string(raw)))
		if fileExists(src) {
			p.removeArchive(ctx, src)
		}
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		p.logger.Warn(ctx, "Failed to remove session dir %s: %v", s.Dir, err)
	}
}
