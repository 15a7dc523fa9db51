package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"elsa-fe/internal/domain"
	"elsa-fe/internal/metadata"
	"elsa-fe/internal/realtime"
	"elsa-fe/internal/resolver"
	"elsa-fe/internal/session"
)

// TestJoinPlayFinishEndToEnd drives the whole client stack (resolver,
// connection manager, coordinator) against a scripted quiz server.
func TestJoinPlayFinishEndToEnd(t *testing.T) {
	token := signToken(t, "host@example.com")
	srv, script := newScriptedServer(t)

	api := metadata.NewClient(srv.URL+"/api", token, time.Second)
	descriptors := metadata.NewDescriptorCache(api, time.Minute)

	admission, err := resolver.New(apiWithCache{descriptors, api}, zerolog.Nop()).
		Resolve(context.Background(), "QUIZ42", "host@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !admission.IsHost() {
		t.Fatal("expected host admission")
	}

	var coord *session.Coordinator
	conn, err := realtime.New(realtime.Config{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quiz",
		Code:    admission.Descriptor.Code,
		Token:   token,
		Logger:  zerolog.Nop(),
		OnEvent: func(data []byte) { coord.HandleMessage(data) },
	})
	if err != nil {
		t.Fatalf("new conn: %v", err)
	}
	coord = session.NewCoordinator(session.Config{
		Admission:    admission,
		Channel:      conn,
		AdvanceDelay: 20 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	defer coord.Close()

	waitFor(t, func() bool { return len(coord.Snapshot().Participants) == 1 })

	if err := coord.StartSession(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool {
		q, _ := coord.CurrentQuestion()
		return coord.Phase() == domain.PhaseRunning && q != nil && q.ID == "q1"
	})

	if err := coord.SubmitAnswer("q1", 0); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	waitFor(t, func() bool {
		result := coord.Snapshot().LastResult
		return result != nil && result.QuestionID == "q1" && result.Correct
	})
	waitFor(t, func() bool {
		q, idx := coord.CurrentQuestion()
		return idx == 1 && q.ID == "q2"
	})

	if err := coord.SubmitAnswer("q2", 1); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	waitFor(t, func() bool { return coord.Phase() == domain.PhaseFinished })

	lb := coord.Snapshot().Leaderboard
	if len(lb) != 2 || lb[0].Email != "host@example.com" || lb[0].Score != 20 {
		t.Fatalf("unexpected final leaderboard: %+v", lb)
	}

	select {
	case <-script.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server script did not finish (end_quiz never received)")
	}
}

type apiWithCache struct {
	descriptors *metadata.DescriptorCache
	api         *metadata.Client
}

func (a apiWithCache) SessionByCode(ctx context.Context, code string) (domain.SessionDescriptor, error) {
	return a.descriptors.SessionByCode(ctx, code)
}

func (a apiWithCache) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	return a.api.Participants(ctx, sessionID)
}

type serverScript struct {
	done chan struct{}
}

func newScriptedServer(t *testing.T) (*httptest.Server, *serverScript) {
	t.Helper()
	script := &serverScript{done: make(chan struct{})}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/quiz/code/QUIZ42", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.SessionDescriptor{
			ID: "s1", Code: "QUIZ42", Title: "Capitals", CreatedBy: "host@example.com",
			QuestionCount: 2, Status: domain.StatusWaiting,
		})
	})
	mux.HandleFunc("/api/quiz/s1/participants", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.Participant{})
	})
	mux.HandleFunc("/ws/quiz/QUIZ42", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		runScript(t, conn, script)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, script
}

func runScript(t *testing.T, conn *websocket.Conn, script *serverScript) {
	send := func(v any) {
		if err := conn.WriteJSON(v); err != nil {
			t.Errorf("server write: %v", err)
		}
	}
	expect := func(kind string) map[string]any {
		for {
			var cmd map[string]any
			if err := conn.ReadJSON(&cmd); err != nil {
				t.Errorf("server read while waiting for %s: %v", kind, err)
				return nil
			}
			if cmd["type"] == kind {
				return cmd
			}
		}
	}

	send(map[string]any{
		"type": "room_participants",
		"participants": []domain.Participant{
			{UserID: "u1", Email: "host@example.com", ConnectedAt: time.Now()},
		},
	})

	if expect("start_quiz") == nil {
		return
	}
	send(map[string]any{
		"type": "start_quiz_now",
		"questions": []domain.Question{
			{ID: "q1", Text: "Capital of France?", Options: []string{"Paris", "Rome"}},
			{ID: "q2", Text: "Capital of Italy?", Options: []string{"Paris", "Rome"}},
		},
	})

	answer := expect("submit_answer")
	if answer == nil {
		return
	}
	if answer["question_id"] != "q1" || answer["answer"] != "Paris" {
		t.Errorf("unexpected first submission: %v", answer)
	}
	send(map[string]any{"type": "answer_result", "question_id": "q1", "correct": true, "score": 10})
	send(map[string]any{
		"type": "leaderboard_update",
		"leaderboard": []domain.LeaderboardEntry{
			{UserID: "u1", Email: "host@example.com", Score: 10, QuestionsAnswered: 1},
			{UserID: "u2", Email: "bob@example.com", Score: 0},
		},
	})

	if expect("submit_answer") == nil {
		return
	}
	if expect("end_quiz") == nil {
		return
	}
	send(map[string]any{
		"type": "end_quiz_now",
		"leaderboard": []domain.LeaderboardEntry{
			{UserID: "u1", Email: "host@example.com", Score: 20, QuestionsAnswered: 2},
			{UserID: "u2", Email: "bob@example.com", Score: 0},
		},
	})
	close(script.done)
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("integration-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
