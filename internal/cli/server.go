package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	pgloader "trivia-session-service/internal/infra/postgres"
	infraredis "trivia-session-service/internal/infra/redis"
	transport "trivia-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	codeTTL := config.TTLDuration(cfg.Redis.CodeTTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.MustStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizRepository
	if redisClient != nil {
		quizzes = infraredis.NewQuizBank(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizBank(loader, quizTTL)
	}

	var codes app.CodeAllocator
	if redisClient != nil {
		codes = infraredis.NewCodeAllocator(redisClient, codeTTL)
	} else {
		codes = memory.NewCodeAllocator()
	}

	var history app.HistoryRecorder = memory.NewHistoryStore()
	var events app.EventTrail = memory.NewEventLog()
	if pool != nil {
		history = pgloader.NewHistoryRecorder(pool)
		events = pgloader.NewEventTrail(pool)
	}

	var sessions app.SessionRepository = memory.NewSessionStore()
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, codeTTL)
	}
	service := app.NewGameService(sessions, quizzes, codes, history, events)
	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides minimal demo content for running without Postgres.
func sampleQuizzes() map[string]domain.QuizDefinition {
	one := 1
	t := true
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Warm-up",
			Published: true,
			Questions: []domain.QuestionRef{
				{
					Order: 1,
					Question: domain.Question{
						ID:      "q1",
						Type:    domain.QuestionMultipleChoice,
						Text:    "What is 2 + 2?",
						Choices: []string{"3", "4", "5"},
						Key:     domain.AnswerKey{CorrectIndex: &one},
					},
				},
				{
					Order: 2,
					Question: domain.Question{
						ID:   "q2",
						Type: domain.QuestionTrueFalse,
						Text: "The sky is blue.",
						Key:  domain.AnswerKey{IsTrue: &t},
					},
				},
				{
					Order: 3,
					Question: domain.Question{
						ID:   "q3",
						Type: domain.QuestionShortText,
						Text: "Capital of France?",
						Key: domain.AnswerKey{
							Accepted: []string{"Paris"},
							Mode:     domain.MatchCasefold,
						},
					},
				},
			},
		},
	}
}
