package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskpilot/internal/config"
	"taskpilot/internal/logging"
	"taskpilot/internal/mirror"
	"taskpilot/internal/notify"
	"taskpilot/internal/repository"
	"taskpilot/internal/server"
	"taskpilot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log := logging.Setup(cfg.LogLevel, cfg.LogFile)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	undoRepo := repository.NewUndoRepository(db)

	emitter := mirror.NewEmitter(&mirror.LogSink{Log: log.WithField("component", "mirror")}, 256, log.WithField("component", "mirror"))
	defer emitter.Close()

	allocator := service.NewIdentifierAllocator(sequenceRepo)
	reminderSvc := service.NewReminderService(reminderRepo, taskRepo, log.WithField("component", "reminders"))
	taskSvc := service.NewTaskService(db, taskRepo, undoRepo, allocator, reminderSvc, emitter,
		cfg.UndoWindow, log.WithField("component", "tasks"))

	var gateway notify.Gateway
	if cfg.TelegramToken != "" {
		gateway, err = notify.NewTelegramGateway(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("telegram gateway: %v", err)
		}
	} else {
		log.Warn("TELEGRAM_TOKEN not set, notifications go to the log")
		gateway = &notify.LogGateway{Log: log.WithField("component", "notify")}
	}

	delivery := service.NewDeliveryScheduler(reminderRepo, gateway,
		cfg.SendTimeout, cfg.SendConcurrency, cfg.MaxSendAttempts, cfg.DeliveryBatch,
		log.WithField("component", "delivery"))
	sweeper := service.NewUndoSweeper(undoRepo, log.WithField("component", "undo"))

	scheduler := service.NewSchedulerService(time.Local, log)
	if _, err := scheduler.ScheduleInterval(cfg.DeliveryInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), cfg.DeliveryInterval*4)
		defer cancel()
		delivery.Tick(jobCtx)
	}); err != nil {
		log.Fatalf("schedule delivery: %v", err)
	}
	if _, err := scheduler.ScheduleInterval(cfg.SweepInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sweeper.Sweep(jobCtx)
	}); err != nil {
		log.Fatalf("schedule undo sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	server.New(taskSvc, reminderSvc, userRepo, log.WithField("component", "http")).Register(router)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("http shutdown: %v", err)
		}
	}()

	log.Infof("taskpilot listening on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
	log.Info("Shutdown complete.")
}
