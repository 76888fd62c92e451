package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"adaptive-quiz-backend/cmd/app/internal/controller"
	"adaptive-quiz-backend/internal/config"
	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/internal/llm"
	"adaptive-quiz-backend/internal/metrics"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/internal/service"
	"adaptive-quiz-backend/pkg/middleware"
	"adaptive-quiz-backend/utilities"
)

func main() {
	printStartUpBanner()

	// Load XML configuration from file.
	cfg, err := config.LoadConfig("config.xml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := utilities.InitLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer utilities.SyncLogger()

	if cfg.Context.TimeZone != "" {
		if loc, err := time.LoadLocation(cfg.Context.TimeZone); err == nil {
			time.Local = loc
		} else {
			utilities.Warn("unknown time zone %q, keeping %s", cfg.Context.TimeZone, time.Local)
		}
	}

	utilities.ConfigureTokens(
		cfg.Authentication.AccessSecret,
		cfg.Authentication.RefreshSecret,
		time.Duration(cfg.Authentication.AccessTokenMinutes)*time.Minute,
		time.Duration(cfg.Authentication.RefreshTokenHours)*time.Hour,
	)

	// Initialize DB using the loaded config.
	conn, err := db.InitDBFromConfig(cfg)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if cfg.DB.Initialize {
		if err := db.Migrate(conn); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	m := metrics.New()
	events := utilities.NewEventBus()
	subscribeLogging(events)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProvider(ctx, cfg.LLM, logger, m)
	if err != nil {
		logger.Fatal("failed to configure question provider", zap.Error(err))
	}
	if provider == nil {
		utilities.Info("no question provider configured, using local generation only")
	}
	temperature, _ := strconv.ParseFloat(cfg.LLM.Temperature, 64)

	// Create repositories.
	userRepo := repository.NewUserRepository(conn)
	categoryRepo := repository.NewCategoryRepository(conn)
	skillRepo := repository.NewSkillRepository(conn)
	abilityRepo := repository.NewAbilityRepository(conn)
	questionRepo := repository.NewQuestionRepository(conn)
	executor := db.NewQueryExecutor(conn)

	// Create services.
	rng := service.NewRand(cfg.Quiz.RandomSeed)
	services := controller.Services{
		Auth:     service.NewAuthService(userRepo),
		User:     service.NewUserService(userRepo, abilityRepo),
		Progress: service.NewProgressService(userRepo, abilityRepo, questionRepo),
		Category: service.NewCategoryService(categoryRepo),
		Skill:    service.NewSkillService(skillRepo, categoryRepo, abilityRepo, questionRepo),
		Question: service.NewQuestionService(
			service.NewSkillSelector(categoryRepo, skillRepo, abilityRepo, rng),
			service.NewHistoryAggregator(questionRepo, service.HistoryOptions{
				HistoryLimit: cfg.Quiz.HistoryLimit,
				CacheSize:    cfg.Quiz.AvoidanceCacheSize,
				Bucket:       cfg.Quiz.AvoidanceBucket(),
				Metrics:      m,
			}),
			llm.NewQuestionAuthor(provider, llm.AuthorOptions{
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: temperature,
			}),
			service.NewFallbackGenerator(rng),
			questionRepo,
			service.QuestionOptions{
				ProviderTimeout:  cfg.Quiz.ProviderTimeout(),
				SubcallCacheSize: cfg.Quiz.SubcallCacheSize,
				DuplicateWindow:  cfg.Quiz.DuplicateWindow(),
				DuplicateRetries: cfg.Quiz.DuplicateRetries,
				ExposeAnswerKey:  cfg.Quiz.ExposeAnswerKey,
				Metrics:          m,
				Events:           events,
			},
		),
		Answer:   service.NewAnswerService(executor, questionRepo, abilityRepo, service.AnswerOptions{Metrics: m, Events: events}),
		Executor: executor,
	}
	if cfg.RateLimit.Enabled {
		services.QuestionLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst).Middleware()
	}

	// Initialize Gin router.
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(), m.Middleware())
	if cfg.RequestDump {
		r.Use(middleware.RequestDumpMiddleware())
	}

	// CORS configuration.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     splitOrigins(cfg.Context.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: cfg.Context.AllowedOrigins != "*",
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(m.Handler()))
	controller.RegisterRoutes(r.Group(cfg.Context.Path), services)

	var handler http.Handler = r
	if cfg.Context.EnableH2C {
		handler = h2c.NewHandler(r, &http2.Server{})
	}

	// Start server on the host and port specified in the XML config.
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Context.Host, cfg.Context.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utilities.Info("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	utilities.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Context.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utilities.Error("graceful shutdown failed: %v", err)
	}
	events.Wait()
}

// subscribeLogging records quiz events in the application log.
func subscribeLogging(events *utilities.EventBus) {
	events.Subscribe(utilities.EventQuestionGenerated, func(data interface{}) {
		if ev, ok := data.(service.QuestionGeneratedEvent); ok {
			utilities.Info("question %d generated for learner %d (skill %d, %s, difficulty %.2f)",
				ev.QuestionID, ev.LearnerID, ev.SkillID, ev.Source, ev.Difficulty)
			if ev.FallbackErr != nil {
				utilities.Debug("question %d used the local generator: %v", ev.QuestionID, ev.FallbackErr)
			}
		}
	})
	events.Subscribe(utilities.EventAnswerRecorded, func(data interface{}) {
		if ev, ok := data.(service.AnswerRecordedEvent); ok {
			utilities.Info("learner %d answered question %d (correct=%t)", ev.LearnerID, ev.QuestionID, ev.IsCorrect)
		}
	})
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func printStartUpBanner() {
	myFigure := figure.NewFigure("QUIZ", "", true)
	myFigure.Print()

	fmt.Println("======================================================")
	fmt.Printf("ADAPTIVE QUIZ API (v%s)\n\n", "1.0.0")
}
