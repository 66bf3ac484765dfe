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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/config"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
	"survey-flow-service/internal/infra/memory"
	mongoloader "survey-flow-service/internal/infra/mongo"
	pgstore "survey-flow-service/internal/infra/postgres"
	redisstore "survey-flow-service/internal/infra/redis"
	transport "survey-flow-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the survey server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// surveySource is both where surveys are read from and where activation is recorded.
type surveySource interface {
	memory.SurveyLoader
	app.SurveyActivator
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	configureLogging(cfg)

	flowCfg, err := flowConfig(cfg)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, migrateOptions{}); err != nil {
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source surveySource = memory.NewStaticSurveyLoader(sampleSurveys())
	switch {
	case pool != nil:
		source = pgstore.NewSurveyLoader(pool)
	case cfg.Mongo.URI != "":
		client, db, err := mongoloader.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		source = mongoloader.NewSurveyLoader(db)
	}

	surveyTTL := config.TTLDuration(cfg.Survey.TTL, 10*time.Minute)
	var surveyRepo app.SurveyRepository
	if redisClient != nil {
		surveyRepo = redisstore.NewSurveyRepository(redisClient, source, surveyTTL)
	} else {
		surveyRepo = memory.NewSurveyRepository(source, surveyTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var answers app.AnswerStore
	switch {
	case pool != nil:
		answers = pgstore.NewAnswerStore(pool, source)
	case redisClient != nil:
		answers = redisstore.NewAnswerStore(redisClient, redisTTL)
	default:
		answers = memory.NewAnswerStore()
	}

	responses := app.NewResponseService(store, surveyRepo, answers, flowCfg)
	surveys := app.NewSurveyService(surveyRepo, source, flowCfg)
	router := transport.NewRouter(transport.NewAPI(surveys, responses), transport.NewWSHandler(responses))

	go evictIdleSessions(ctx, responses, config.TTLDuration(cfg.Survey.SessionIdle, 30*time.Minute))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{"port": finalPort, "absent_next": flowCfg.AbsentNext}).Info("starting survey service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("failed to start server: %v", err)
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

func flowConfig(cfg config.Config) (app.FlowConfig, error) {
	policy, err := flow.ParseAbsentNextPolicy(cfg.Survey.AbsentNext)
	if err != nil {
		return app.FlowConfig{}, err
	}
	return app.FlowConfig{AbsentNext: policy, MaxQuestions: cfg.Survey.MaxQuestions}, nil
}

func configureLogging(cfg config.Config) {
	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if cfg.Log.Level == "" {
		return
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, log.GetLevel())
		return
	}
	log.SetLevel(level)
}

// sampleSurveys is served when no database is configured.
func sampleSurveys() map[int64]domain.Survey {
	toRating, _ := domain.GoToQuestion(2)
	end := domain.EndSurvey()
	return map[int64]domain.Survey{
		1: {
			ID:     1,
			Title:  "Product feedback",
			Active: true,
			Questions: []domain.Question{
				{
					ID:         1,
					Text:       "Have you used the product this month?",
					Type:       domain.QuestionSingleChoice,
					OrderIndex: 0,
					Required:   true,
					Options: []domain.QuestionOption{
						{ID: 1, Text: "Yes", OrderIndex: 0, Next: &toRating},
						{ID: 2, Text: "No", OrderIndex: 1, Next: &end},
					},
				},
				{ID: 2, Text: "How satisfied are you?", Type: domain.QuestionRating, OrderIndex: 1, Required: true},
				{ID: 3, Text: "Anything we should improve?", Type: domain.QuestionText, OrderIndex: 2},
			},
		},
	}
}

// evictIdleSessions sweeps sessions nobody is connected to, checking four times per
// idle period and at most once a second.
func evictIdleSessions(ctx context.Context, responses *app.ResponseService, idle time.Duration) {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			responses.EvictIdleSessions(ctx, idle)
		}
	}
}
