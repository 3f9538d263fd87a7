package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jvreeland/questlog/internal/provider"
)

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) Name() string  { return "google" }
func (f *fakeProvider) Model() string { return "gemini-2.5-flash" }

func (f *fakeProvider) Summarize(ctx context.Context, transcriptPath, prompt string) (*provider.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{
		Summary:      "The party defeated the dragon.",
		Usage:        provider.Usage{PromptTokens: 100, OutputTokens: 50, TotalTokens: 150},
		Duration:     1200 * time.Millisecond,
		HTTPStatus:   200,
		FinishReason: "STOP",
		Provider:     "google",
		Model:        "gemini-2.5-flash",
	}, nil
}

type fakePoster struct {
	calls  int
	titles []string
	err    error
}

func (f *fakePoster) PostRecap(ctx context.Context, title, content string) error {
	f.calls++
	f.titles = append(f.titles, title)
	return f.err
}

func TestAdvanceCompletesSession(t *testing.T) {
	prov := &fakeProvider{}
	poster := &fakePoster{}
	p, cfg := testPipeline(t, &fakeExecutor{})
	p.provider = prov
	p.poster = poster

	s := newTestSession(t, cfg, "2025-04-05")
	if err := os.WriteFile(s.masterTranscriptPath(), []byte("[00:00:01] a: hi\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.advance(context.Background(), s); err != nil {
		t.Fatalf("advance: %v", err)
	}

	recapText, err := os.ReadFile(s.recapPath())
	if err != nil {
		t.Fatalf("recap not written: %v", err)
	}
	if !strings.Contains(string(recapText), "The party defeated the dragon.") {
		t.Errorf("recap missing summary: %q", recapText)
	}
	if poster.calls != 1 {
		t.Errorf("poster called %d times, want 1", poster.calls)
	}
	if want := "April 5, 2025 Session Recap"; len(poster.titles) == 0 || poster.titles[0] != want {
		t.Errorf("post title = %v, want %q", poster.titles, want)
	}
	if !fileExists(s.deliveredPath()) || !fileExists(s.completedPath()) {
		t.Error("delivery and completion markers not written")
	}
	if got := deriveState(s); got != StateArchived {
		t.Errorf("final state = %v, want archived", got)
	}
}

func TestAdvanceLeavesSessionPendingOnProviderFailure(t *testing.T) {
	prov := &fakeProvider{err: errors.New("api quota exceeded")}
	poster := &fakePoster{}
	p, cfg := testPipeline(t, &fakeExecutor{})
	p.provider = prov
	p.poster = poster

	s := newTestSession(t, cfg, "2025-04-06")
	if err := os.WriteFile(s.masterTranscriptPath(), []byte("[00:00:01] a: hi\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.advance(context.Background(), s); err != nil {
		t.Fatalf("provider failure must not be fatal: %v", err)
	}
	if fileExists(s.recapPath()) {
		t.Error("no recap should exist after a failed summarization")
	}
	if poster.calls != 0 {
		t.Error("nothing should be delivered without a recap")
	}

	// next cycle retries and succeeds
	prov.err = nil
	if err := p.advance(context.Background(), s); err != nil {
		t.Fatalf("retry advance: %v", err)
	}
	if prov.calls != 2 {
		t.Errorf("provider called %d times, want 2", prov.calls)
	}
	if !fileExists(s.completedPath()) {
		t.Error("session should complete after successful retry")
	}
}

func TestAdvanceDeliveryFailureIsFatal(t *testing.T) {
	poster := &fakePoster{err: errors.New("webhook returned 429")}
	p, cfg := testPipeline(t, &fakeExecutor{})
	p.provider = &fakeProvider{}
	p.poster = poster

	s := newTestSession(t, cfg, "2025-04-07")
	os.WriteFile(s.masterTranscriptPath(), []byte("[00:00:01] a: hi\n"), 0644)
	os.WriteFile(s.recapPath(), []byte("## recap\n\nbody\n"), 0644)

	if err := p.advance(context.Background(), s); err == nil {
		t.Fatal("delivery failure must propagate")
	}
	if fileExists(s.deliveredPath()) {
		t.Error("delivered marker must not be written on failure")
	}
}

func TestFinalizeArchivesSourceZip(t *testing.T) {
	p, cfg := testPipeline(t, &fakeExecutor{})
	p.cfg.Cleanup.ArchiveZip = true
	p.cfg.Cleanup.DeleteAudio = true

	s := newTestSession(t, cfg, "2025-04-08")
	archive := filepath.Join(cfg.Paths.Upload, "craig-abc.zip")
	os.WriteFile(archive, []byte("zipdata"), 0644)
	os.WriteFile(s.sourceArchivePath(), []byte("craig-abc.zip\n"), 0644)
	os.WriteFile(filepath.Join(s.Dir, "1-alice.flac"), []byte("audio"), 0644)

	if err := p.finalize(context.Background(), s); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if fileExists(archive) {
		t.Error("archive should be moved out of upload dir")
	}
	if !fileExists(filepath.Join(cfg.Paths.Archive, "2025-04-08_craig-abc.zip")) {
		t.Error("archive not moved to archive dir with date prefix")
	}
	if fileExists(filepath.Join(s.Dir, "1-alice.flac")) {
		t.Error("audio should be deleted when cleanup.delete_audio is set")
	}
	if !fileExists(s.completedPath()) {
		t.Error("completion marker missing")
	}
}

func TestFinalizeDeletesArchiveWhenNotArchiving(t *testing.T) {
	p, cfg := testPipeline(t, &fakeExecutor{})
	p.cfg.Cleanup.ArchiveZip = false

	s := newTestSession(t, cfg, "2025-04-09")
	archive := filepath.Join(cfg.Paths.Upload, "craig-del.zip")
	os.WriteFile(archive, []byte("zipdata"), 0644)
	os.WriteFile(s.sourceArchivePath(), []byte("craig-del.zip\n"), 0644)

	if err := p.finalize(context.Background(), s); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if fileExists(archive) {
		t.Error("archive should be deleted when cleanup.archive_zip is off")
	}
}

func TestRunCycleDiscardsBadSession(t *testing.T) {
	p, cfg := testPipeline(t, &fakeExecutor{})
	p.provider = &fakeProvider{}
	p.poster = &fakePoster{}

	// session dir with no audio tracks at all
	s := newTestSession(t, cfg, "2025-04-10")

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if fileExists(s.Dir) {
		t.Error("unusable session should be discarded")
	}
}
