package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
	redisbank "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/logging"
	"quiz-session-service/internal/metrics"
	"quiz-session-service/internal/notify"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	log := logging.New("quiz-session-service")

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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var store app.SessionStore
	var bank app.QuestionBank
	if pool != nil {
		store = pgstore.NewSessionStore(pool)
		bank = pgstore.NewQuestionBank(pool)
	} else {
		log.Warn("postgres not configured, using in-memory store with sample questions")
		store = memory.NewSessionStore()
		bank = sampleQuestionBank()
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bank = redisbank.NewQuestionBank(redisClient, bank, cacheTTL)
	} else if pool != nil {
		bank = memory.NewQuestionCache(bank, cacheTTL)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}

	feed := app.NewResultFeed()
	service := app.NewQuizService(store, bank, notifier, feed, log)

	m := metrics.New()
	handler := transport.NewHandler(service, log, m)
	feedHandler := transport.NewResultFeedHandler(feed, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/ws/results", feedHandler.ServeWS)
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionBank provides a minimal question set for running without a
// database.
func sampleQuestionBank() *memory.StaticQuestionBank {
	return memory.NewStaticQuestionBank(
		[]domain.Question{
			{ID: 1, Text: "Which HTTP status code means Not Found?"},
			{ID: 2, Text: "Which SQL keyword filters rows?"},
		},
		[]domain.Alternative{
			{ID: 1, QuestionID: 1, Points: 0},
			{ID: 2, QuestionID: 1, Points: 5},
			{ID: 3, QuestionID: 2, Points: 3},
			{ID: 4, QuestionID: 2, Points: 0},
		},
	)
}
