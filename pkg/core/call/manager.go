package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evermem/linekeeper/pkg/core"
	"github.com/evermem/linekeeper/pkg/core/voice"
	"github.com/evermem/linekeeper/pkg/memory"
	"github.com/evermem/linekeeper/pkg/policy"
)

const apologyMessage = "I'm sorry, something went wrong on my end. Goodbye."

// liveCall wraps one session with the lock that guards snapshot reads from
// other goroutines. All mutation happens on the goroutine running the call;
// the lock exists so status and registry lookups observe consistent state.
type liveCall struct {
	mu         sync.Mutex
	session    *Session
	cancel     context.CancelFunc
	removeOnce sync.Once
}

func (c *liveCall) update(fn func(s *Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.session)
}

func (c *liveCall) snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := *c.session
	out.Transcript = append([]TranscriptEntry(nil), c.session.Transcript...)
	return out
}

func (c *liveCall) startInfo() (time.Time, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.StartTime, c.session.CallerID
}

// Deps are the collaborators a Manager needs.
type Deps struct {
	Config   Config
	Logger   *slog.Logger
	Profiles memory.ProfileDirectory
	Search   memory.Searcher
	Policy   policy.Engine
	Store    memory.ConversationStore
	Now      func() time.Time
}

// Manager owns the active-session registry and drives each call through its
// lifecycle: authorize, answer, converse, close, summarize, persist.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	profiles memory.ProfileDirectory
	store    memory.ConversationStore
	composer *Composer
	now      func() time.Time
	registry *registry
}

// NewManager builds a Manager from deps, applying defaults for anything
// left nil.
func NewManager(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		cfg:      deps.Config.withDefaults(),
		logger:   logger,
		profiles: deps.Profiles,
		store:    deps.Store,
		composer: &Composer{
			Profiles: deps.Profiles,
			Search:   deps.Search,
			Policy:   deps.Policy,
			Logger:   logger,
		},
		now:      now,
		registry: newRegistry(),
	}
}

// Config returns the normalized call configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// CallInfo identifies one inbound call. SessionID may be preassigned by the
// transport (so it can acknowledge the caller before the call runs); when
// empty a new id is generated.
type CallInfo struct {
	SessionID  string
	CallerID   string
	CallerName string
	Platform   Platform
}

// HandleCall runs one inbound call to completion on the calling goroutine
// and returns the terminal session. Internal failures never surface as
// errors: they produce a terminal failed session instead. The returned
// session has AIControlled=false when the authorization gate declined the
// call.
func (m *Manager) HandleCall(ctx context.Context, info CallInfo, listener voice.Listener, speaker voice.Speaker) Session {
	if info.SessionID == "" {
		info.SessionID = uuid.NewString()
	}

	profile := m.lookupProfile(ctx, info.CallerID)
	if !ShouldHandle(m.cfg, info.CallerID, profile) {
		m.logger.Info("call rejected by authorization gate",
			"session_id", info.SessionID, "caller_id", info.CallerID, "platform", info.Platform)
		return m.rejectedSession(info)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &liveCall{
		session: &Session{
			ID:           info.SessionID,
			CallerID:     info.CallerID,
			CallerName:   info.CallerName,
			Platform:     info.Platform,
			StartTime:    m.now().UTC(),
			Status:       StatusRinging,
			Outcome:      OutcomeCompleted,
			AIControlled: true,
		},
		cancel: cancel,
	}
	unregister := m.registry.register(info.SessionID, c)

	m.logger.Info("call session started",
		"session_id", info.SessionID, "caller_id", info.CallerID, "platform", info.Platform)

	if err := m.answer(callCtx, c, speaker); err != nil {
		m.logger.Warn("failed to answer call", "session_id", info.SessionID, "error", err)
		m.close(c, StatusFailed, OutcomeError, unregister)
		return c.snapshot()
	}

	outcome, err := m.runGuarded(callCtx, c, listener, speaker)
	if err != nil {
		m.logger.Error("call session failed", "session_id", info.SessionID, "error", err)
		m.speakBestEffort(callCtx, speaker, apologyMessage)
		m.close(c, StatusFailed, OutcomeError, unregister)
		return c.snapshot()
	}

	m.speakBestEffort(callCtx, speaker, m.cfg.EndingMessage)
	m.close(c, StatusEnded, outcome, unregister)
	return c.snapshot()
}

// runGuarded runs the conversation loop with a panic guard so a misbehaving
// collaborator can never take down anything beyond its own call.
func (m *Manager) runGuarded(ctx context.Context, c *liveCall, listener voice.Listener, speaker voice.Speaker) (outcome Outcome, err error) {
	defer func() {
		if v := recover(); v != nil {
			outcome = OutcomeError
			err = core.NewSessionError(fmt.Sprintf("panic in conversation loop: %v", v), nil)
		}
	}()
	return m.runLoop(ctx, c, listener, speaker)
}

// answer speaks the greeting and moves the session to active.
func (m *Manager) answer(ctx context.Context, c *liveCall, speaker voice.Speaker) error {
	if err := speaker.Speak(ctx, m.cfg.GreetingMessage, m.cfg.Voice); err != nil {
		return core.NewCollaboratorError("speak", err)
	}
	var terr error
	c.update(func(s *Session) { terr = s.transition(StatusActive) })
	return terr
}

// close performs the terminal transition exactly once: stamp the end time,
// generate the summary in the same step, leave the registry, and attempt
// persistence. Calling it again on a closed session has no effect.
func (m *Manager) close(c *liveCall, status Status, outcome Outcome, unregister func()) {
	var snap Session
	closed := false

	c.mu.Lock()
	if !c.session.Status.Terminal() && c.session.Status.CanTransition(status) {
		c.session.Status = status
		c.session.Outcome = outcome
		c.session.EndTime = m.now().UTC()
		c.session.Summary = SummarizeCall(c.session.EndTime.Sub(c.session.StartTime), c.session.Transcript)
		snap = *c.session
		snap.Transcript = append([]TranscriptEntry(nil), c.session.Transcript...)
		closed = true
	}
	c.mu.Unlock()

	if !closed {
		return
	}
	unregister()

	m.logger.Info("call session closed",
		"session_id", snap.ID, "status", snap.Status, "outcome", snap.Outcome,
		"duration_ms", snap.Duration().Milliseconds(), "entries", len(snap.Transcript))

	m.persist(snap)
}

// persist stores the finished conversation. It runs exactly once per
// session; a storage failure is logged and never reopens or retries the
// call.
func (m *Manager) persist(s Session) {
	if m.store == nil {
		return
	}

	entry := memory.Entry{
		Transcript:   FormatTranscript(s.Transcript),
		Summary:      s.Summary,
		Participants: []string{s.CallerID},
		Platform:     string(s.Platform),
		MessageType:  memory.MessageTypeCallTranscript,
		Metadata:     memory.Metadata{DurationSeconds: int(s.Duration().Seconds())},
		PrivacyLevel: memory.PrivacyPrivate,
		Approved:     false,
		Tags:         []string{memory.TagCallTranscript, memory.TagAIHandled, memory.TagPendingApproval},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.store.StoreConversation(ctx, entry); err != nil {
		m.logger.Warn("failed to persist call transcript", "session_id", s.ID, "error", err)
	}
}

func (m *Manager) lookupProfile(ctx context.Context, callerID string) *memory.RelationshipProfile {
	if m.profiles == nil {
		return nil
	}
	profile, err := m.profiles.Profile(ctx, callerID)
	if err != nil {
		m.logger.Warn("relationship profile lookup failed", "caller_id", callerID, "error", err)
		return nil
	}
	return profile
}

// rejectedSession is the terminal record for a call the gate declined. It is
// never added to the registry and never persisted; there is no transcript to
// keep.
func (m *Manager) rejectedSession(info CallInfo) Session {
	now := m.now().UTC()
	s := Session{
		ID:           info.SessionID,
		CallerID:     info.CallerID,
		CallerName:   info.CallerName,
		Platform:     info.Platform,
		StartTime:    now,
		EndTime:      now,
		Status:       StatusFailed,
		Outcome:      OutcomeError,
		AIControlled: false,
	}
	s.Summary = SummarizeCall(0, nil)
	return s
}

func (m *Manager) speakBestEffort(ctx context.Context, speaker voice.Speaker, text string) {
	if err := speaker.Speak(ctx, text, m.cfg.Voice); err != nil {
		m.logger.Warn("failed to speak closing message", "error", err)
	}
}

// SessionSnapshot returns a copy of an active session. Sessions leave the
// registry at their terminal transition; finished calls live only in the
// conversation store.
func (m *Manager) SessionSnapshot(sessionID string) (Session, bool) {
	c, ok := m.registry.get(sessionID)
	if !ok {
		return Session{}, false
	}
	return c.snapshot(), true
}

// ActiveCalls reports how many sessions are currently ringing or active.
func (m *Manager) ActiveCalls() int {
	return m.registry.count()
}

// CancelAll cancels the context of every in-flight call. Used during
// shutdown after the drain grace period.
func (m *Manager) CancelAll() int {
	return m.registry.cancelAll()
}

// Wait blocks until all in-flight calls have closed, or ctx expires.
func (m *Manager) Wait(ctx context.Context) bool {
	return m.registry.wait(ctx)
}
