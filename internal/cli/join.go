package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"elsa-fe/internal/auth"
	"elsa-fe/internal/config"
	"elsa-fe/internal/domain"
	"elsa-fe/internal/metadata"
	"elsa-fe/internal/realtime"
	"elsa-fe/internal/resolver"
	"elsa-fe/internal/session"
)

func newJoinCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join a quiz session by code and play it interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd, *configPath, strings.ToUpper(args[0]))
		},
	}
}

func runJoin(cmd *cobra.Command, configPath, code string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	timeout := config.Duration(cfg.API.Timeout, 30*time.Second)

	store, err := auth.NewTokenStore(cfg.Auth.TokenPath)
	if err != nil {
		return err
	}
	token, err := store.Load()
	if err != nil {
		return err
	}
	identity, err := auth.ParseIdentity(token, time.Now())
	if err != nil {
		return err
	}

	api := metadata.NewClient(cfg.API.BaseURL, token, timeout)
	descriptors := metadata.NewDescriptorCache(api, config.Duration(cfg.Metadata.CacheTTL, 30*time.Second))

	admission, err := resolver.New(cachedAPI{descriptors, api}, log).Resolve(ctx, code, identity.Email)
	if err != nil {
		return err
	}

	var coord *session.Coordinator
	conn, err := realtime.New(realtime.Config{
		URL:              cfg.Realtime.URL,
		Code:             admission.Descriptor.Code,
		Token:            token,
		HealthCheckDelay: config.Duration(cfg.Realtime.HealthCheckDelay, realtime.DefaultHealthCheckDelay),
		Logger:           log,
		OnEvent: func(data []byte) {
			coord.HandleMessage(data)
		},
		OnConnectionLost: func() {
			fmt.Println("Connection lost. Press enter to retry or type quit to leave.")
		},
	})
	if err != nil {
		return err
	}

	coord = session.NewCoordinator(session.Config{
		Admission:    admission,
		Channel:      conn,
		AdvanceDelay: config.Duration(cfg.Session.AdvanceDelay, session.DefaultAdvanceDelay),
		Logger:       log,
		OnUpdate:     render,
	})

	if err := conn.Open(ctx); err != nil {
		return err
	}
	defer conn.Close()
	defer coord.Close()

	fmt.Printf("Joined %q as %s. Room code: %s\n", admission.Descriptor.Title, identity.Email, admission.Descriptor.Code)
	if admission.IsHost() {
		fmt.Println("You are the host. Type start to begin the quiz.")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			fmt.Println("Leaving session.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := handleInput(ctx, line, coord, conn); done {
				return nil
			}
		}
	}
}

func handleInput(ctx context.Context, line string, coord *session.Coordinator, conn *realtime.Conn) bool {
	switch {
	case line == "quit" || line == "exit":
		fmt.Println("Leaving session.")
		return true
	case line == "start":
		if err := coord.StartSession(); err != nil {
			fmt.Println("Cannot start:", err)
		}
	case line == "":
		// Enter after a lost connection attempts a foreground-style redial.
		if err := conn.HandleForeground(ctx); err != nil {
			fmt.Println("Reconnect failed:", err)
		}
	default:
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Println("Type start, an option number, or quit.")
			return false
		}
		question, _ := coord.CurrentQuestion()
		if question == nil {
			fmt.Println("No question to answer yet.")
			return false
		}
		if err := coord.SubmitAnswer(question.ID, n-1); err != nil {
			fmt.Println("Cannot answer:", err)
		}
	}
	return false
}

// cachedAPI routes descriptor lookups through the TTL cache while roster
// fetches stay live; a stale roster would weaken the duplicate-join guard.
type cachedAPI struct {
	descriptors *metadata.DescriptorCache
	api         *metadata.Client
}

func (c cachedAPI) SessionByCode(ctx context.Context, code string) (domain.SessionDescriptor, error) {
	return c.descriptors.SessionByCode(ctx, code)
}

func (c cachedAPI) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	return c.api.Participants(ctx, sessionID)
}

func render(snap session.Snapshot) {
	switch snap.Phase {
	case domain.PhaseIdle:
		if len(snap.Participants) > 0 {
			fmt.Printf("Lobby (%d joined): ", len(snap.Participants))
			for i, p := range snap.Participants {
				if i > 0 {
					fmt.Print(", ")
				}
				fmt.Print(p.Email)
			}
			fmt.Println()
		}
	case domain.PhaseRunning:
		if snap.Question != nil && !snap.Answered {
			fmt.Printf("\nQuestion %d of %d: %s\n", snap.QuestionIndex+1, snap.QuestionTotal, snap.Question.Text)
			for i, option := range snap.Question.Options {
				fmt.Printf("  %d) %s\n", i+1, option)
			}
		}
		printLeaderboard(snap.Leaderboard, "Leaderboard")
	case domain.PhaseFinished:
		fmt.Println("\nQuiz finished!")
		printLeaderboard(snap.Leaderboard, "Final results")
	}
}

func printLeaderboard(entries []domain.LeaderboardEntry, title string) {
	if len(entries) == 0 {
		return
	}
	fmt.Println(title + ":")
	for i, entry := range entries {
		fmt.Printf("  %d. %s: %d points (%d answered)\n", i+1, entry.Email, entry.Score, entry.QuestionsAnswered)
	}
}
