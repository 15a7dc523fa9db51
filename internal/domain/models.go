package domain

import "time"

// SessionStatus values reported by the metadata API.
const (
	StatusWaiting = "waiting"
	StatusRunning = "running"
	StatusEnded   = "ended"
)

// SessionSettings holds per-session options chosen by the host.
type SessionSettings struct {
	TimeLimitSeconds int  `json:"time_limit_seconds"`
	ShuffleQuestions bool `json:"shuffle_questions"`
}

// SessionDescriptor is the static view of a quiz session, fetched once by
// code before the realtime channel opens. It is never mutated locally.
type SessionDescriptor struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	CreatedBy     string          `json:"created_by"`
	QuestionCount int             `json:"question_count"`
	Status        string          `json:"status"`
	Settings      SessionSettings `json:"settings"`
}

// Participant is one member of a session roster.
type Participant struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Question is a single quiz question. The correct answer index is withheld
// by the server, so it never appears here.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// LeaderboardEntry is one row of a leaderboard snapshot. Each push fully
// replaces the previous snapshot; scores are server-authoritative.
type LeaderboardEntry struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Score             int    `json:"score"`
	QuestionsAnswered int    `json:"questions_answered"`
}

// Phase is the lifecycle state of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Admission is proof that a join attempt passed pre-channel validation.
// It carries the validated descriptor and the caller's identity, and
// authorizes opening the realtime channel for that session.
type Admission struct {
	Descriptor SessionDescriptor
	Identity   string
}

// IsHost reports whether the admitted identity created the session and may
// therefore start it.
func (a Admission) IsHost() bool {
	return a.Identity != "" && a.Identity == a.Descriptor.CreatedBy
}
