package session

import (
	"encoding/json"
	"fmt"

	"elsa-fe/internal/domain"
)

// Inbound message types pushed by the quiz server. The exact set varies by
// server generation; anything else decodes to nil and is ignored.
const (
	typeRoomParticipants  = "room_participants"
	typeStartQuizNow      = "start_quiz_now"
	typeQuestion          = "question"
	typeLeaderboardUpdate = "leaderboard_update"
	typeAnswerResult      = "answer_result"
	typeEndQuizNow        = "end_quiz_now"
)

// Event is the closed set of inbound variants.
type Event interface {
	eventType() string
}

// RosterEvent replaces the participant set wholesale.
type RosterEvent struct {
	Participants []domain.Participant `json:"participants"`
}

// StartedEvent moves the session from Idle to Running. Servers deliver
// either the full ordered question list or just the first question, with
// subsequent questions pushed individually; both fields cover both modes.
type StartedEvent struct {
	Questions   []domain.Question         `json:"questions"`
	Question    *domain.Question          `json:"question"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// QuestionEvent replaces the current question (per-question push mode).
type QuestionEvent struct {
	Question domain.Question `json:"question"`
}

// LeaderboardEvent replaces the leaderboard snapshot wholesale.
type LeaderboardEvent struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// AnswerResultEvent is the server's per-user scoring echo for a submission.
type AnswerResultEvent struct {
	QuestionID string `json:"question_id"`
	Correct    bool   `json:"correct"`
	Score      int    `json:"score"`
}

// EndedEvent moves the session to Finished with the final leaderboard.
type EndedEvent struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

func (RosterEvent) eventType() string       { return typeRoomParticipants }
func (StartedEvent) eventType() string      { return typeStartQuizNow }
func (QuestionEvent) eventType() string     { return typeQuestion }
func (LeaderboardEvent) eventType() string  { return typeLeaderboardUpdate }
func (AnswerResultEvent) eventType() string { return typeAnswerResult }
func (EndedEvent) eventType() string        { return typeEndQuizNow }

// decodeEvent parses one inbound frame. Unknown types return (nil, nil) so
// the coordinator treats them as no-ops; malformed frames return an error
// and must never reach the state machine.
func decodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch envelope.Type {
	case typeRoomParticipants:
		var ev RosterEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return ev, nil
	case typeStartQuizNow:
		var ev StartedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return ev, nil
	case typeQuestion:
		var ev QuestionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return ev, nil
	case typeLeaderboardUpdate:
		var ev LeaderboardEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return ev, nil
	case typeAnswerResult:
		var ev AnswerResultEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return ev, nil
	case typeEndQuizNow:
		var ev EndedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return ev, nil
	default:
		return nil, nil
	}
}

// Outbound command types.
const (
	cmdStartQuiz    = "start_quiz"
	cmdSubmitAnswer = "submit_answer"
	cmdEndQuiz      = "end_quiz"
)

type command struct {
	Type       string `json:"type"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
}
