// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/textpulse/textpulse-backend/internal/config"
	"github.com/textpulse/textpulse-backend/internal/controller"
	"github.com/textpulse/textpulse-backend/internal/db"
	"github.com/textpulse/textpulse-backend/internal/logger"
	"github.com/textpulse/textpulse-backend/internal/model"
	"github.com/textpulse/textpulse-backend/internal/queue"
	"github.com/textpulse/textpulse-backend/internal/repository"
	"github.com/textpulse/textpulse-backend/internal/scheduler"
	"github.com/textpulse/textpulse-backend/internal/service"
	"github.com/textpulse/textpulse-backend/internal/sms"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer zlog.Sync()

	database, err := db.Open(cfg.DB)
	if err != nil {
		zlog.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close()

	campaignRepo := &repository.CampaignRepository{DB: database}
	customerRepo := &repository.CustomerRepository{DB: database}
	reportRepo := &repository.DeliveryReportRepository{DB: database}

	// Without provider credentials the mock client answers sends, so the
	// whole pipeline works in local development.
	var client sms.Client
	if cfg.SMS.AccountID != "" && cfg.SMS.AuthToken != "" {
		client = sms.NewHTTPClient(cfg.SMS)
	} else {
		zlog.Warnw("no sms credentials configured, using mock client")
		client = sms.NewMockClient()
	}

	transport := sms.NewTransport(client, sms.TransportConfig{
		From:          cfg.SMS.FromNumber,
		BatchSize:     cfg.SMS.BatchSize,
		BatchInterval: cfg.SMS.BatchInterval,
	}, zlog)

	var broker queue.ReportBroker = queue.NopBroker{}
	if cfg.AMQP.URL != "" {
		if b, err := queue.NewAMQPBroker(cfg.AMQP.URL, cfg.AMQP.ReportQueue); err != nil {
			zlog.Warnw("report broker unavailable, delivery reports disabled", "error", err)
		} else {
			broker = b
			defer b.Close()
		}
	}

	campaignQueue := queue.NewCampaignQueue(
		queue.NewInMemoryJobStore(),
		transport,
		campaignRepo,
		broker,
		queue.Config{
			BatchSize:    cfg.SMS.BatchSize,
			MaxRetries:   cfg.Queue.MaxRetries,
			RetryBackoff: 500 * time.Millisecond,
		},
		zlog,
	)
	defer campaignQueue.Close()

	cleanups := scheduler.NewCleanupRegistry()
	cleanups.Register(model.CleanupKindLogPrune, func(ctx context.Context) error {
		n, err := reportRepo.PruneBefore(time.Now().AddDate(0, 0, -90))
		if err == nil {
			zlog.Infow("pruned old delivery reports", "rows", n)
		}
		return err
	})
	cleanups.Register(model.CleanupKindFailedPrune, func(ctx context.Context) error {
		n, err := reportRepo.PruneFailedBefore(time.Now().AddDate(0, 0, -30))
		if err == nil {
			zlog.Infow("pruned failed delivery reports", "rows", n)
		}
		return err
	})
	cleanups.Register(model.CleanupKindMetricsRollup, func(ctx context.Context) error {
		ids, err := reportRepo.CampaignIDsReportedSince(time.Now().AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := reportRepo.RollupCampaignCounters(id); err != nil {
				return err
			}
		}
		return nil
	})

	notifier := sms.NewReminderNotifier(transport, zlog)
	sched := scheduler.New(
		scheduler.NewInMemoryTaskStore(),
		campaignQueue,
		notifier,
		cleanups,
		cfg.Schedule.SweepInterval,
		zlog,
	)
	sched.Start()
	defer sched.Stop()

	campaignService := service.NewCampaignService(campaignRepo, customerRepo, sched, campaignQueue, zlog)

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	taskController := &controller.TaskController{Scheduler: sched, Queue: campaignQueue}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Delete("/campaigns/{id}", campaignController.DeleteCampaign)
	r.Post("/campaigns/{id}/send", campaignController.SendCampaign)
	r.Post("/campaigns/{id}/reschedule", campaignController.RescheduleCampaign)
	r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
	r.Post("/campaigns/{id}/personalized-preview", campaignController.PersonalizedPreview)

	r.Get("/tasks", taskController.ListTasks)
	r.Get("/tasks/upcoming", taskController.UpcomingTasks)
	r.Get("/tasks/stats", taskController.TaskStats)
	r.Get("/tasks/{id}", taskController.GetTask)
	r.Post("/tasks/{id}/cancel", taskController.CancelTask)

	r.Get("/jobs", taskController.ListJobs)
	r.Get("/jobs/{id}", taskController.GetJob)

	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.ServerAddr, Handler: r}

	go func() {
		zlog.Infow("server running", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatalw("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zlog.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("shutdown error", "error", err)
	}
}
