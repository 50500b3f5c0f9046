package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
	"github.com/skyiron/chartdbDiagramsSQL/internal/repositories"
)

// fakeClock stands in for time.Now so typing recency is controlled by the
// test instead of the scheduler.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (n *recordingNotifier) titleCount(title string) int {
	count := 0
	for _, t := range n.titles() {
		if t == title {
			count++
		}
	}
	return count
}

type sessionEnv struct {
	store    *recordingStore
	drafts   *repositories.MemoryDraftRepository
	notifier *recordingNotifier
	manager  *SessionManager
	diagram  *models.Diagram
}

func newSessionEnv(t *testing.T, mode TriggerMode, debounce time.Duration) *sessionEnv {
	t.Helper()
	store := newRecordingStore()
	drafts := repositories.NewMemoryDraftRepository()
	notifier := &recordingNotifier{}
	logger := zap.NewNop()
	pipeline := NewApplyPipeline(store, notifier, logger)
	return &sessionEnv{
		store:    store,
		drafts:   drafts,
		notifier: notifier,
		manager:  NewSessionManager(pipeline, drafts, notifier, logger, mode, debounce),
		diagram:  seedBlogDiagram(t, store),
	}
}

func (e *sessionEnv) open(t *testing.T) *EditSession {
	t.Helper()
	s, err := e.manager.Open(context.Background(), e.diagram.ID)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

const commentsBlock = `
Table comments {
  id integer [pk]
  user_id integer [not null, ref: > users.id]
}
`

const likesBlock = `
Table likes {
  id integer [pk]
  comment_id integer [not null]
}
`

func TestSessionOpenCleanBaseline(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 5*time.Millisecond)
	s := env.open(t)

	state := s.State()
	if state.Phase != PhaseClean {
		t.Errorf("phase = %s, want clean", state.Phase)
	}
	if state.Content != state.Baseline || state.Content == "" {
		t.Errorf("content/baseline mismatch:\n%q\n%q", state.Content, state.Baseline)
	}
	if !strings.Contains(state.Content, "Table users") || !strings.Contains(state.Content, "Ref") {
		t.Errorf("baseline missing generated content:\n%s", state.Content)
	}
	if state.ParseError != nil {
		t.Errorf("fresh session has parse error: %v", state.ParseError)
	}

	again := env.open(t)
	if again != s {
		t.Error("second Open returned a different session")
	}
}

func TestSessionDebouncedValidationCoalesces(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 20*time.Millisecond)
	s := env.open(t)
	baseline := s.State().Baseline

	// An invalid intermediate followed quickly by a valid state: only the
	// final content is validated, so no error notification fires.
	s.HandleChange(context.Background(), "Table users {\n  id integer\n", nil)
	s.HandleChange(context.Background(), baseline+commentsBlock, nil)

	time.Sleep(80 * time.Millisecond)
	state := s.State()
	if state.ParseError != nil {
		t.Errorf("parse error from stale validation: %v", state.ParseError)
	}
	if env.notifier.titleCount("DBML parse error") != 0 {
		t.Error("stale validation produced a notification")
	}
	if state.Phase != PhaseDirty {
		t.Errorf("phase = %s, want dirty", state.Phase)
	}

	// A change that stays invalid surfaces exactly one notification.
	s.HandleChange(context.Background(), "Table users {\n  id integer\n", nil)
	waitFor(t, func() bool { return s.State().ParseError != nil }, "parse error never surfaced")
	if got := env.notifier.titleCount("DBML parse error"); got != 1 {
		t.Errorf("parse error notifications = %d, want 1", got)
	}
}

func TestSessionManualApply(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 5*time.Millisecond)
	s := env.open(t)
	edited := s.State().Baseline + commentsBlock

	s.HandleChange(context.Background(), edited, nil)
	if draft, ok, _ := env.drafts.LoadDraft(context.Background(), env.diagram.ID); !ok || draft != edited {
		t.Error("dirty change did not save a draft")
	}

	outcome, err := s.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !outcome.Ran || outcome.Summary == nil {
		t.Fatalf("outcome = %+v, want a completed run", outcome)
	}
	if outcome.Summary.TablesAdded != 1 || outcome.Summary.RelationshipsAdded != 1 {
		t.Errorf("summary = %+v, want 1 table and 1 relationship added", outcome.Summary)
	}

	wantCalls := []string{"UpdateTablesState", "AddTables", "AddRelationships"}
	got := env.store.callLog()
	if len(got) != len(wantCalls) {
		t.Fatalf("store calls = %v, want %v", got, wantCalls)
	}
	for i := range wantCalls {
		if got[i] != wantCalls[i] {
			t.Fatalf("store calls = %v, want %v", got, wantCalls)
		}
	}

	state := s.State()
	if state.Phase != PhaseClean {
		t.Errorf("phase = %s, want clean", state.Phase)
	}
	if state.Content != state.Baseline || !strings.Contains(state.Content, "Table comments") {
		t.Errorf("content after apply:\n%s", state.Content)
	}
	if model := s.handle.GetModel(); model != state.Content {
		t.Error("editor content was not replaced with the regenerated text")
	}
	if _, ok, _ := env.drafts.LoadDraft(context.Background(), env.diagram.ID); ok {
		t.Error("draft survived a clean apply")
	}
	if !env.notifier.hasTitle("Diagram updated") {
		t.Errorf("notifications = %v, want apply summary", env.notifier.titles())
	}
}

func TestSessionManualApplyBlockedOnParseError(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 5*time.Millisecond)
	s := env.open(t)

	s.HandleChange(context.Background(), "Table users {\n  id integer\n", nil)
	outcome, err := s.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if outcome.Ran || outcome.ParseError == nil {
		t.Fatalf("outcome = %+v, want blocked with parse error", outcome)
	}
	if calls := env.store.callLog(); len(calls) != 0 {
		t.Errorf("store mutations ran while blocked: %v", calls)
	}
	if s.State().Phase != PhaseDirty {
		t.Errorf("phase = %s, want dirty", s.State().Phase)
	}
}

func TestSessionApplyWithoutChangesIsNoop(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 5*time.Millisecond)
	s := env.open(t)

	outcome, err := s.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if outcome.Ran || outcome.ParseError != nil {
		t.Errorf("outcome = %+v, want clean no-op", outcome)
	}
	if calls := env.store.callLog(); len(calls) != 0 {
		t.Errorf("store calls = %v, want none", calls)
	}
}

func TestSessionDraftRecovery(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 5*time.Millisecond)
	s := env.open(t)
	draft := "Table users {\n  id integer [pk]\n"
	s.HandleChange(context.Background(), draft, nil)
	env.manager.CloseSession(env.diagram.ID)

	s = env.open(t)
	state := s.State()
	if state.Phase != PhaseDirty {
		t.Errorf("phase = %s, want dirty after recovery", state.Phase)
	}
	if state.Content != draft {
		t.Errorf("content = %q, want recovered draft", state.Content)
	}
	if state.ParseError == nil {
		t.Error("recovered invalid draft has no parse error")
	}
	if !env.notifier.hasTitle("Draft restored") {
		t.Errorf("notifications = %v, want draft recovery notice", env.notifier.titles())
	}
}

func TestSessionDraftMatchingBaselineIsDropped(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 5*time.Millisecond)
	s := env.open(t)
	baseline := s.State().Baseline
	env.manager.CloseSession(env.diagram.ID)

	if err := env.drafts.SaveDraft(context.Background(), env.diagram.ID, baseline); err != nil {
		t.Fatalf("SaveDraft() error: %v", err)
	}

	s = env.open(t)
	if s.State().Phase != PhaseClean {
		t.Errorf("phase = %s, want clean", s.State().Phase)
	}
	if _, ok, _ := env.drafts.LoadDraft(context.Background(), env.diagram.ID); ok {
		t.Error("baseline-equal draft was kept")
	}
	if env.notifier.hasTitle("Draft restored") {
		t.Error("baseline-equal draft produced a recovery notice")
	}
}

func TestSessionDiscard(t *testing.T) {
	env := newSessionEnv(t, TriggerManual, 50*time.Millisecond)
	s := env.open(t)
	baseline := s.State().Baseline

	s.HandleChange(context.Background(), "Table users {\n  id integer\n", nil)
	if err := s.Discard(context.Background()); err != nil {
		t.Fatalf("Discard() error: %v", err)
	}

	state := s.State()
	if state.Phase != PhaseClean || state.Content != baseline || state.ParseError != nil {
		t.Errorf("state after discard = %+v", state)
	}
	if model := s.handle.GetModel(); model != baseline {
		t.Error("editor content was not restored")
	}
	if _, ok, _ := env.drafts.LoadDraft(context.Background(), env.diagram.ID); ok {
		t.Error("draft survived discard")
	}

	// The pending validation was canceled with the edit it belonged to.
	time.Sleep(120 * time.Millisecond)
	if env.notifier.hasTitle("DBML parse error") {
		t.Error("canceled validation still notified")
	}
	if s.State().Phase != PhaseClean {
		t.Errorf("phase drifted to %s after discard", s.State().Phase)
	}
}

func TestSessionAutoApplyReplacesWhenIdle(t *testing.T) {
	env := newSessionEnv(t, TriggerAuto, 5*time.Millisecond)
	s := env.open(t)
	clock := newFakeClock()
	s.now = clock.Now

	env.store.mu.Lock()
	env.store.gate = make(chan struct{})
	gate := env.store.gate
	env.store.mu.Unlock()

	edited := s.State().Baseline + commentsBlock
	s.HandleChange(context.Background(), edited, nil)
	waitFor(t, func() bool { return len(env.store.callLog()) >= 1 }, "auto apply never reached the store")

	// The keystroke is old by the time the apply finishes, so the editor
	// is updated with the regenerated text.
	clock.Advance(time.Second)
	close(gate)

	waitFor(t, func() bool {
		state := s.State()
		return state.Phase == PhaseClean && state.Content == state.Baseline
	}, "auto apply never settled clean")

	state := s.State()
	if !strings.Contains(state.Content, "Table comments") {
		t.Errorf("content after auto apply:\n%s", state.Content)
	}
	if model := s.handle.GetModel(); model != state.Content {
		t.Error("editor content was not replaced after idle apply")
	}
}

func TestSessionAutoApplySuppressesWhileTyping(t *testing.T) {
	env := newSessionEnv(t, TriggerAuto, 5*time.Millisecond)
	s := env.open(t)
	clock := newFakeClock()
	s.now = clock.Now

	edited := s.State().Baseline + commentsBlock
	s.HandleChange(context.Background(), edited, nil)

	// The frozen clock keeps every apply inside the typing window.
	waitFor(t, func() bool {
		state := s.State()
		return state.Phase == PhaseDirty && strings.Contains(state.Baseline, "Table comments")
	}, "auto apply never updated the baseline")

	state := s.State()
	if state.Content != edited {
		t.Error("typed content was replaced during the typing window")
	}
	if model := s.handle.GetModel(); model != edited {
		t.Error("editor content was replaced during the typing window")
	}
	if _, ok, _ := env.drafts.LoadDraft(context.Background(), env.diagram.ID); !ok {
		t.Error("draft missing while content still differs from baseline")
	}
}

func TestSessionAutoApplyCoalescesInFlightEdits(t *testing.T) {
	env := newSessionEnv(t, TriggerAuto, 5*time.Millisecond)
	s := env.open(t)
	clock := newFakeClock()
	s.now = clock.Now

	env.store.mu.Lock()
	env.store.gate = make(chan struct{})
	gate := env.store.gate
	env.store.mu.Unlock()

	baseline := s.State().Baseline
	first := baseline + commentsBlock
	second := baseline + commentsBlock + likesBlock

	s.HandleChange(context.Background(), first, nil)
	waitFor(t, func() bool { return len(env.store.callLog()) == 1 }, "first apply never reached the store")

	// Lands while the first apply is blocked; no second run starts.
	s.HandleChange(context.Background(), second, nil)
	close(gate)

	waitFor(t, func() bool {
		return strings.Contains(s.State().Baseline, "Table likes")
	}, "follow-up apply never ran")

	wantCalls := []string{"UpdateTablesState", "AddTables", "AddRelationships", "UpdateTablesState", "AddTables"}
	got := env.store.callLog()
	if len(got) != len(wantCalls) {
		t.Fatalf("store calls = %v, want one apply plus one follow-up", got)
	}
	for i := range wantCalls {
		if got[i] != wantCalls[i] {
			t.Fatalf("store calls = %v, want %v", got, wantCalls)
		}
	}
	if s.State().Content != second {
		t.Error("in-flight edit was lost")
	}
}

func TestSessionAutoApplyInvalidDoesNotTrigger(t *testing.T) {
	env := newSessionEnv(t, TriggerAuto, 5*time.Millisecond)
	s := env.open(t)

	s.HandleChange(context.Background(), "Table users {\n  id integer\n", nil)
	state := s.State()
	if state.ParseError == nil {
		t.Fatal("invalid change has no parse error")
	}
	if state.Phase != PhaseDirty {
		t.Errorf("phase = %s, want dirty", state.Phase)
	}

	time.Sleep(30 * time.Millisecond)
	if calls := env.store.callLog(); len(calls) != 0 {
		t.Errorf("invalid content reached the store: %v", calls)
	}
}
