package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/dbml"
	"github.com/skyiron/chartdbDiagramsSQL/internal/editor"
	"github.com/skyiron/chartdbDiagramsSQL/internal/repositories"
)

// Phase is the session state: Clean shows generated content, Dirty has
// unapplied edits, Validating has a debounced parse in flight, Applying
// has the mutation pipeline running.
type Phase string

const (
	PhaseClean      Phase = "clean"
	PhaseDirty      Phase = "dirty"
	PhaseValidating Phase = "validating"
	PhaseApplying   Phase = "applying"
)

// TriggerMode selects how edits reach the apply pipeline: on explicit
// request, or automatically on every valid change.
type TriggerMode string

const (
	TriggerManual TriggerMode = "manual"
	TriggerAuto   TriggerMode = "auto"
)

// typingRecency is how fresh the last keystroke must be for a post-apply
// content replacement to be suppressed instead of clobbering the user's
// typing.
const typingRecency = 500 * time.Millisecond

// EditSession owns the editing state of one diagram: the working text,
// the applied baseline, the parse status and the editor handle. A mutex
// serializes event handling; the apply pipeline runs outside the lock
// with a guard that drops re-entrant runs.
type EditSession struct {
	diagramID uuid.UUID
	mode      TriggerMode
	debounce  time.Duration

	pipeline *ApplyPipeline
	drafts   repositories.DraftStore
	notifier Notifier
	logger   *zap.Logger
	handle   editor.Handle

	mu            sync.Mutex
	phase         Phase
	content       string
	baseline      string
	parseErr      *dbml.ParseError
	notifiedErr   *dbml.ParseError
	lastEditAt    time.Time
	validateTimer *time.Timer
	validateToken int
	applying      bool

	now func() time.Time
}

// SessionState is the observable snapshot handed to clients.
type SessionState struct {
	DiagramID  uuid.UUID        `json:"diagram_id"`
	Phase      Phase            `json:"phase"`
	Mode       TriggerMode      `json:"trigger_mode"`
	Content    string           `json:"content"`
	Baseline   string           `json:"baseline"`
	ParseError *dbml.ParseError `json:"parse_error,omitempty"`
	Position   editor.Position  `json:"position"`
}

// ApplyOutcome reports what a manual apply request did. A parse error
// blocks the run without being an error: no store calls happen and the
// error rides along for display.
type ApplyOutcome struct {
	Ran        bool             `json:"ran"`
	Content    string           `json:"content,omitempty"`
	Summary    *ApplySummary    `json:"summary,omitempty"`
	ParseError *dbml.ParseError `json:"parse_error,omitempty"`
}

// HandleChange records a content change coming from the editor. In auto
// mode a valid change that differs from the baseline starts an apply run;
// in manual mode validation is debounced.
func (s *EditSession) HandleChange(ctx context.Context, text string, pos *editor.Position) {
	s.mu.Lock()
	if text == s.content {
		if pos != nil {
			s.handle.SetPosition(*pos)
		}
		s.mu.Unlock()
		return
	}
	s.content = text
	s.lastEditAt = s.now()
	s.phase = PhaseDirty
	s.handle.PushEdit(text)
	if pos != nil {
		s.handle.SetPosition(*pos)
	}
	mode := s.mode
	s.mu.Unlock()

	s.saveDraft(ctx, text)

	if mode == TriggerAuto {
		perr := dbml.Validate(text)
		s.mu.Lock()
		s.parseErr = perr
		trigger := perr == nil && s.content != s.baseline && !s.applying
		s.mu.Unlock()
		if trigger {
			go s.autoApply()
		}
		return
	}

	s.mu.Lock()
	s.scheduleValidation()
	s.mu.Unlock()
}

// scheduleValidation arms the debounce timer. Caller holds the lock. A
// newer edit bumps the token, so a stale timer that already fired becomes
// a no-op.
func (s *EditSession) scheduleValidation() {
	s.validateToken++
	token := s.validateToken
	if s.validateTimer != nil {
		s.validateTimer.Stop()
	}
	s.validateTimer = time.AfterFunc(s.debounce, func() {
		s.runValidation(token)
	})
}

func (s *EditSession) runValidation(token int) {
	s.mu.Lock()
	if token != s.validateToken || s.applying {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseValidating
	text := s.content
	s.mu.Unlock()

	perr := dbml.Validate(text)

	s.mu.Lock()
	if token != s.validateToken || s.applying {
		s.mu.Unlock()
		return
	}
	s.parseErr = perr
	if s.content == s.baseline && perr == nil {
		s.phase = PhaseClean
	} else {
		s.phase = PhaseDirty
	}
	notify := perr != nil && (s.notifiedErr == nil || *s.notifiedErr != *perr)
	s.notifiedErr = perr
	s.mu.Unlock()

	if notify {
		s.notifier.Notify(Notification{
			Severity:    SeverityError,
			Title:       "DBML parse error",
			Description: perr.Error(),
		})
	}
}

// Apply runs the pipeline on request. With a parse error present it is an
// early-return no-op: no store mutation, no failure.
func (s *EditSession) Apply(ctx context.Context) (*ApplyOutcome, error) {
	s.mu.Lock()
	text := s.content
	s.mu.Unlock()

	perr := dbml.Validate(text)
	s.mu.Lock()
	s.parseErr = perr
	if perr != nil {
		s.phase = PhaseDirty
		s.mu.Unlock()
		return &ApplyOutcome{ParseError: perr}, nil
	}
	s.mu.Unlock()

	result, err := s.runApply(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &ApplyOutcome{}, nil
	}
	return &ApplyOutcome{Ran: true, Content: result.Content, Summary: &result.Summary}, nil
}

// autoApply performs one pipeline run plus at most one follow-up when
// edits landed while the run was in flight. Further changes re-trigger
// through HandleChange.
func (s *EditSession) autoApply() {
	ctx := context.Background()
	result, err := s.runApply(ctx)
	if err != nil || result == nil {
		return
	}

	s.mu.Lock()
	text := s.content
	followUp := text != s.baseline
	s.mu.Unlock()
	if !followUp || dbml.Validate(text) != nil {
		return
	}
	s.runApply(ctx)
}

// runApply is the single guarded pipeline entry. It returns (nil, nil)
// when the run was dropped because one is in flight or there is nothing
// to apply.
func (s *EditSession) runApply(ctx context.Context) (*ApplyResult, error) {
	s.mu.Lock()
	if s.applying {
		s.mu.Unlock()
		return nil, nil
	}
	text := s.content
	if text == s.baseline {
		if s.parseErr == nil {
			s.phase = PhaseClean
		}
		s.mu.Unlock()
		return nil, nil
	}
	s.applying = true
	s.phase = PhaseApplying
	s.mu.Unlock()

	result, err := s.pipeline.Apply(ctx, s.diagramID, text)

	s.mu.Lock()
	s.applying = false
	if err != nil {
		s.phase = PhaseDirty
		var perr *dbml.ParseError
		if errors.As(err, &perr) {
			s.parseErr = perr
			s.mu.Unlock()
			return nil, nil
		}
		s.mu.Unlock()
		s.notifier.Notify(Notification{
			Severity:    SeverityError,
			Title:       "Failed to update diagram",
			Description: err.Error(),
		})
		return nil, err
	}

	s.baseline = result.Content
	suppress := s.mode == TriggerAuto && s.now().Sub(s.lastEditAt) < typingRecency
	if !suppress {
		s.content = result.Content
		s.parseErr = nil
		s.validateToken++
		editor.ReplaceContent(s.handle, result.Content)
	}
	clean := s.content == s.baseline
	if clean {
		s.phase = PhaseClean
	} else {
		s.phase = PhaseDirty
	}
	content := s.content
	s.mu.Unlock()

	if clean {
		s.clearDraft(ctx)
	} else {
		s.saveDraft(ctx, content)
	}
	s.notifier.Notify(Notification{
		Severity:    SeverityInfo,
		Title:       "Diagram updated",
		Description: summaryDescription(result.Summary),
	})
	return result, nil
}

// Discard drops the working text and restores the generated baseline.
func (s *EditSession) Discard(ctx context.Context) error {
	baseline, err := s.pipeline.CanonicalText(ctx, s.diagramID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.validateToken++
	if s.validateTimer != nil {
		s.validateTimer.Stop()
		s.validateTimer = nil
	}
	s.baseline = baseline
	s.content = baseline
	s.parseErr = nil
	s.notifiedErr = nil
	s.phase = PhaseClean
	editor.ReplaceContent(s.handle, baseline)
	s.mu.Unlock()

	s.clearDraft(ctx)
	return nil
}

func (s *EditSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		DiagramID:  s.diagramID,
		Phase:      s.phase,
		Mode:       s.mode,
		Content:    s.content,
		Baseline:   s.baseline,
		ParseError: s.parseErr,
		Position:   s.handle.GetPosition(),
	}
}

// Close stops pending timers. The draft survives for recovery.
func (s *EditSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validateToken++
	if s.validateTimer != nil {
		s.validateTimer.Stop()
		s.validateTimer = nil
	}
}

func (s *EditSession) saveDraft(ctx context.Context, content string) {
	if err := s.drafts.SaveDraft(ctx, s.diagramID, content); err != nil {
		s.logger.Warn("draft save failed",
			zap.String("diagram_id", s.diagramID.String()),
			zap.Error(err))
	}
}

func (s *EditSession) clearDraft(ctx context.Context) {
	if err := s.drafts.ClearDraft(ctx, s.diagramID); err != nil {
		s.logger.Warn("draft clear failed",
			zap.String("diagram_id", s.diagramID.String()),
			zap.Error(err))
	}
}

func summaryDescription(s ApplySummary) string {
	if s.Empty() {
		return "No changes."
	}
	return fmt.Sprintf("%d tables added, %d updated, %d removed; %d relationships added, %d removed.",
		s.TablesAdded, s.TablesUpdated, s.TablesRemoved,
		s.RelationshipsAdded, s.RelationshipsRemoved)
}

// SessionManager hands out one EditSession per diagram.
type SessionManager struct {
	pipeline *ApplyPipeline
	drafts   repositories.DraftStore
	notifier Notifier
	logger   *zap.Logger
	mode     TriggerMode
	debounce time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*EditSession
}

func NewSessionManager(pipeline *ApplyPipeline, drafts repositories.DraftStore, notifier Notifier, logger *zap.Logger, mode TriggerMode, debounce time.Duration) *SessionManager {
	return &SessionManager{
		pipeline: pipeline,
		drafts:   drafts,
		notifier: notifier,
		logger:   logger,
		mode:     mode,
		debounce: debounce,
		sessions: make(map[uuid.UUID]*EditSession),
	}
}

// Open returns the session for a diagram, creating it on first use. A
// stored draft that differs from the generated baseline is restored into
// the working text with a recovery notice.
func (m *SessionManager) Open(ctx context.Context, diagramID uuid.UUID) (*EditSession, error) {
	m.mu.Lock()
	if s, ok := m.sessions[diagramID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	baseline, err := m.pipeline.CanonicalText(ctx, diagramID)
	if err != nil {
		return nil, err
	}

	s := &EditSession{
		diagramID: diagramID,
		mode:      m.mode,
		debounce:  m.debounce,
		pipeline:  m.pipeline,
		drafts:    m.drafts,
		notifier:  m.notifier,
		logger:    m.logger,
		handle:    editor.NewBuffer(baseline),
		phase:     PhaseClean,
		content:   baseline,
		baseline:  baseline,
		now:       time.Now,
	}

	draft, ok, derr := m.drafts.LoadDraft(ctx, diagramID)
	switch {
	case derr != nil:
		m.logger.Warn("draft load failed",
			zap.String("diagram_id", diagramID.String()),
			zap.Error(derr))
	case ok && draft != baseline:
		s.content = draft
		s.phase = PhaseDirty
		s.parseErr = dbml.Validate(draft)
		s.handle.PushEdit(draft)
		m.notifier.Notify(Notification{
			Severity:    SeverityInfo,
			Title:       "Draft restored",
			Description: "An unapplied DBML draft for this diagram was recovered.",
		})
	case ok:
		if err := m.drafts.ClearDraft(ctx, diagramID); err != nil {
			m.logger.Warn("draft clear failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[diagramID]; ok {
		return existing, nil
	}
	m.sessions[diagramID] = s
	return s, nil
}

func (m *SessionManager) Get(diagramID uuid.UUID) (*EditSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[diagramID]
	return s, ok
}

// CloseSession drops a session from the manager, stopping its timers.
func (m *SessionManager) CloseSession(diagramID uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[diagramID]
	delete(m.sessions, diagramID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}
