package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"elsa-fe/internal/domain"
)

// DefaultAdvanceDelay is the client-local pause between recording an answer
// and exposing the next question.
const DefaultAdvanceDelay = time.Second

// Channel is the outbound half of the realtime connection as seen by the
// coordinator. Commands are fire-and-forget; no acknowledgment is awaited.
type Channel interface {
	Send(v any) error
}

// Snapshot is a consistent copy of the coordinator's visible state, handed
// to the update callback after every applied change.
type Snapshot struct {
	Phase         domain.Phase
	Participants  []domain.Participant
	Question      *domain.Question
	QuestionIndex int
	QuestionTotal int
	Answered      bool
	Leaderboard   []domain.LeaderboardEntry
	LastResult    *AnswerResultEvent
}

// Config wires a Coordinator to one admitted session.
type Config struct {
	Admission domain.Admission
	Channel   Channel

	AdvanceDelay time.Duration
	Clock        clockwork.Clock
	Logger       zerolog.Logger
	// Rand drives the client-local question shuffle. Seeded from entropy
	// when nil; tests inject a fixed seed.
	Rand *rand.Rand

	// OnUpdate, when set, receives a snapshot after every state change.
	OnUpdate func(Snapshot)
}

// Coordinator is the per-session state machine. It interprets inbound events
// against the current phase, holds the authoritative local view, and emits
// outbound commands. Every transition, whether from an inbound event, a timer
// firing, or an API call, is serialized under one mutex, so session logic
// never runs concurrently with itself.
type Coordinator struct {
	descriptor   domain.SessionDescriptor
	identity     string
	ch           Channel
	clock        clockwork.Clock
	log          zerolog.Logger
	rnd          *rand.Rand
	advanceDelay time.Duration
	onUpdate     func(Snapshot)

	mu           sync.Mutex
	phase        domain.Phase
	participants []domain.Participant
	questions    []domain.Question
	current      *domain.Question
	currentIndex int
	answered     bool
	leaderboard  Aggregator
	lastResult   *AnswerResultEvent
	startedAt    time.Time
	endSent      bool
	advanceTimer clockwork.Timer
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Coordinator{
		descriptor:   cfg.Admission.Descriptor,
		identity:     cfg.Admission.Identity,
		ch:           cfg.Channel,
		clock:        cfg.Clock,
		log:          cfg.Logger.With().Str("component", "session").Str("code", cfg.Admission.Descriptor.Code).Logger(),
		rnd:          cfg.Rand,
		advanceDelay: cfg.AdvanceDelay,
		onUpdate:     cfg.OnUpdate,
		phase:        domain.PhaseIdle,
	}
}

// HandleMessage applies one inbound frame. Malformed or unknown frames are
// logged and dropped; an event either fully applies or not at all.
func (c *Coordinator) HandleMessage(data []byte) {
	ev, err := decodeEvent(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	if ev == nil {
		c.log.Debug().RawJSON("event", data).Msg("ignoring unknown event type")
		return
	}

	c.mu.Lock()
	changed := c.applyLocked(ev)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.notify(snap)
	}
}

func (c *Coordinator) applyLocked(ev Event) bool {
	switch ev := ev.(type) {
	case RosterEvent:
		c.participants = ev.Participants
		return true

	case StartedEvent:
		if c.phase != domain.PhaseIdle {
			c.log.Warn().Str("phase", c.phase.String()).Msg("ignoring start in non-idle phase")
			return false
		}
		switch {
		case len(ev.Questions) > 0:
			questions := make([]domain.Question, len(ev.Questions))
			copy(questions, ev.Questions)
			if c.descriptor.Settings.ShuffleQuestions {
				shuffle(questions, c.rnd)
			}
			c.questions = questions
			c.current = &c.questions[0]
		case ev.Question != nil:
			q := *ev.Question
			c.questions = nil
			c.current = &q
		default:
			c.log.Warn().Msg("ignoring start event without questions")
			return false
		}
		c.currentIndex = 0
		c.answered = false
		c.phase = domain.PhaseRunning
		c.startedAt = c.clock.Now()
		if len(ev.Leaderboard) > 0 {
			c.leaderboard.Replace(ev.Leaderboard)
		}
		c.log.Info().Int("questions", len(c.questions)).Msg("session started")
		return true

	case QuestionEvent:
		if c.phase != domain.PhaseRunning {
			c.log.Warn().Str("phase", c.phase.String()).Msg("ignoring question outside running phase")
			return false
		}
		// A server push supersedes any pending local advance.
		c.stopAdvanceLocked()
		if c.current != nil && ev.Question.ID != c.current.ID {
			c.currentIndex++
		}
		q := ev.Question
		c.current = &q
		c.answered = false
		return true

	case LeaderboardEvent:
		c.leaderboard.Replace(ev.Leaderboard)
		return true

	case AnswerResultEvent:
		result := ev
		c.lastResult = &result
		return true

	case EndedEvent:
		if c.phase == domain.PhaseFinished {
			return false
		}
		// Finished always wins over a pending local advance.
		c.stopAdvanceLocked()
		c.phase = domain.PhaseFinished
		if len(ev.Leaderboard) > 0 {
			c.leaderboard.Replace(ev.Leaderboard)
		}
		c.log.Info().Msg("session ended")
		return true

	default:
		return false
	}
}

// StartSession asks the server to begin the quiz. Only the host may send it,
// and only from the lobby; both guards fail closed locally. A server-side
// rejection arrives as a normal close or error push and is not fatal here.
func (c *Coordinator) StartSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != c.descriptor.CreatedBy {
		return domain.ErrNotHost
	}
	if c.phase != domain.PhaseIdle {
		return domain.ErrNotIdle
	}
	if err := c.ch.Send(command{Type: cmdStartQuiz}); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	c.log.Info().Msg("start requested")
	return nil
}

// SubmitAnswer records the caller's answer for the current question. The
// question is marked answered and the local advance scheduled as soon as the
// command is written; server acknowledgment is not awaited. A second
// submission for the same question, or one targeting any other question,
// changes nothing and sends nothing.
func (c *Coordinator) SubmitAnswer(questionID string, answerIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseRunning {
		return domain.ErrNotRunning
	}
	if c.current == nil || questionID != c.current.ID {
		return domain.ErrWrongQuestion
	}
	if c.answered {
		return domain.ErrAlreadyAnswered
	}
	if answerIndex < 0 || answerIndex >= len(c.current.Options) {
		return domain.ErrInvalidOption
	}

	cmd := command{
		Type:       cmdSubmitAnswer,
		QuestionID: questionID,
		Answer:     c.current.Options[answerIndex],
	}
	if err := c.ch.Send(cmd); err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}

	c.answered = true
	c.stopAdvanceLocked()
	c.advanceTimer = c.clock.AfterFunc(c.advanceDelay, c.advance)
	c.log.Debug().Str("question_id", questionID).Int("answer", answerIndex).Msg("answer submitted")
	return nil
}

// advance fires after the post-answer delay. The phase is re-checked under
// the lock first: if the server ended the session in the meantime, the
// Finished transition has already won and nothing happens.
func (c *Coordinator) advance() {
	c.mu.Lock()
	c.advanceTimer = nil
	if c.phase != domain.PhaseRunning {
		c.mu.Unlock()
		return
	}

	changed := false
	total := len(c.questions)
	if total == 0 {
		total = c.descriptor.QuestionCount
	}

	switch {
	case len(c.questions) > 0 && c.currentIndex+1 < len(c.questions):
		c.currentIndex++
		c.current = &c.questions[c.currentIndex]
		c.answered = false
		changed = true
		c.log.Debug().Int("index", c.currentIndex).Msg("advanced to next question")
	case total > 0 && c.currentIndex+1 >= total:
		c.emitEndLocked()
	default:
		// Per-question push mode with more questions to come; the next
		// question event resets the submission flag.
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.notify(snap)
	}
}

// emitEndLocked tells the server to finalize. Edge-triggered: sent at most
// once per session no matter how often advancement passes the end.
func (c *Coordinator) emitEndLocked() {
	if c.endSent {
		return
	}
	c.endSent = true
	if err := c.ch.Send(command{Type: cmdEndQuiz}); err != nil {
		c.log.Warn().Err(err).Msg("failed to send end command")
		return
	}
	c.log.Info().Msg("end requested")
}

// Close cancels any pending local advance. The connection itself is owned
// and closed by the caller.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAdvanceLocked()
}

func (c *Coordinator) stopAdvanceLocked() {
	if c.advanceTimer != nil {
		c.advanceTimer.Stop()
		c.advanceTimer = nil
	}
}

func (c *Coordinator) notify(snap Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(snap)
	}
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Descriptor returns the immutable session descriptor.
func (c *Coordinator) Descriptor() domain.SessionDescriptor {
	return c.descriptor
}

// IsHost reports whether this coordinator's identity may start the session.
func (c *Coordinator) IsHost() bool {
	return c.identity == c.descriptor.CreatedBy
}

// CurrentQuestion returns the exposed question and its index, or nil before
// the session starts.
func (c *Coordinator) CurrentQuestion() (*domain.Question, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, 0
	}
	q := *c.current
	return &q, c.currentIndex
}

// Snapshot returns a consistent copy of the visible state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Elapsed is the time since the session entered Running, zero while Idle.
func (c *Coordinator) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return c.clock.Since(c.startedAt)
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:         c.phase,
		QuestionIndex: c.currentIndex,
		QuestionTotal: len(c.questions),
		Answered:      c.answered,
		Leaderboard:   c.leaderboard.Entries(),
	}
	if snap.QuestionTotal == 0 {
		snap.QuestionTotal = c.descriptor.QuestionCount
	}
	if c.current != nil {
		q := *c.current
		snap.Question = &q
	}
	if len(c.participants) > 0 {
		snap.Participants = make([]domain.Participant, len(c.participants))
		copy(snap.Participants, c.participants)
	}
	if c.lastResult != nil {
		result := *c.lastResult
		snap.LastResult = &result
	}
	return snap
}

// shuffle applies a uniform Fisher-Yates permutation. Shuffling is a
// client-local presentation decision over server-delivered content.
func shuffle(questions []domain.Question, rnd *rand.Rand) {
	for i := len(questions) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
