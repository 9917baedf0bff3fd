package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/SuperHuman/internal/cache"
	"github.com/Dias221467/SuperHuman/internal/coach"
	"github.com/Dias221467/SuperHuman/internal/config"
	"github.com/Dias221467/SuperHuman/internal/database"
	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/handlers"
	"github.com/Dias221467/SuperHuman/internal/jobs"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/internal/repository/memstore"
	"github.com/Dias221467/SuperHuman/internal/scheduler"
	"github.com/Dias221467/SuperHuman/internal/services"
	"github.com/Dias221467/SuperHuman/pkg/email"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/Dias221467/SuperHuman/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type stores struct {
	users      repository.UserStore
	activities repository.ActivityStore
	progress   repository.ProgressStore
	friends    repository.FriendStore
}

func openStores(cfg *config.Config, levels *gamification.LevelTable) (stores, error) {
	if cfg.UseMemoryStore() {
		logger.Log.Warn("MONGO_URI not set, using in-memory store")
		mem := memstore.New(levels)
		return stores{users: mem, activities: mem, progress: mem, friends: mem}, nil
	}

	db, err := database.ConnectDB(cfg)
	if err != nil {
		return stores{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return stores{}, err
	}

	return stores{
		users:      repository.NewUserRepository(db),
		activities: repository.NewActivityRepository(db),
		progress:   repository.NewProgressRepository(db, levels),
		friends:    repository.NewFriendRepository(db),
	}, nil
}

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")

	levels := gamification.DefaultLevels()

	st, err := openStores(cfg, levels)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Services ---
	progressService := services.NewProgressService(st.progress, st.activities, levels, cfg.StreakTimezone)
	activityService := services.NewActivityService(st.activities, progressService)
	leaderboardService := services.NewLeaderboardService(st.progress, st.friends, st.users, levels, cfg.StreakTimezone)
	friendService := services.NewFriendService(st.friends, st.users, st.activities)
	userService := services.NewUserService(st.users, st.activities, st.progress, st.friends)
	reconciler := jobs.NewReconciler(st.activities, st.progress, progressService)

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, leaderboards read from the store")
		} else {
			defer rdb.Close()
			board := cache.NewLeaderboardCache(rdb)
			progressService.WithCache(board)
			leaderboardService.WithCache(board)
			userService.WithCache(board)
			reconciler.WithCache(board)

			warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := reconciler.WarmCache(warmCtx); err != nil {
				logger.Log.WithError(err).Warn("Leaderboard cache warm-up failed, boards read from the store until the next reconcile")
			}
			cancel()
		}
	}

	if sender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPassword); sender != nil {
		userService.WithMailer(sender)
	}

	generator := coach.NewGenerator(coach.Config{
		APIKey:  cfg.CoachAPIKey,
		APIURL:  cfg.CoachAPIURL,
		Model:   cfg.CoachModel,
		Timeout: cfg.CoachTimeout,
	})
	coachService := services.NewCoachService(generator, progressService, st.users)

	// --- Background jobs ---
	cronJobs, err := scheduler.StartReconcileJobs(cfg.ReconcileSchedule, reconciler)
	if err != nil {
		log.Fatalf("Scheduler error: %v", err)
	}

	// --- Routes ---
	router := mux.NewRouter()
	handlers.RegisterRoutes(router, cfg.JWTSecret, handlers.Handlers{
		User:        handlers.NewUserHandler(userService, cfg.JWTSecret, cfg.TokenExpiry),
		Activity:    handlers.NewActivityHandler(activityService),
		Progress:    handlers.NewProgressHandler(progressService),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboardService),
		Friend:      handlers.NewFriendHandler(friendService),
		Coach:       handlers.NewCoachHandler(coachService, cfg.JWTSecret, cfg.CORSOrigins),
		Admin:       handlers.NewAdminHandler(reconciler),
	})

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.WithField("port", cfg.Port).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Log.Info("Shutting down")

	if cronJobs != nil {
		<-cronJobs.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Graceful shutdown failed")
	}
}
