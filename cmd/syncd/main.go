package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/models/config"
	"teamsync/internal/notify"
	"teamsync/internal/realtime"
	"teamsync/internal/repository"
	attendance_repo "teamsync/internal/repository/attendance"
	ledger_repo "teamsync/internal/repository/ledger"
	membership_repo "teamsync/internal/repository/membership"
	"teamsync/internal/service"
	ledger_service "teamsync/internal/service/ledger"
	membership_service "teamsync/internal/service/membership"
	reconcile_service "teamsync/internal/service/reconcile"
	snapshot_service "teamsync/internal/service/snapshot"
	"teamsync/internal/web"
	database "teamsync/pkg"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app := fx.New(
		fx.Provide(
			newLogger,
			database.NewPostgres,
			ledger_repo.NewLedgerRepository,
			membership_repo.NewMembershipRepository,
			attendance_repo.NewAttendanceRepository,
			newNotifier,
			newLedgerService,
			newReconciler,
			snapshot_service.NewSnapshotService,
			newMembershipService,
			newSynchronizer,
			web.NewHandler,
		),
		fx.Invoke(run),
	)
	app.Run()
}

func newLogger() (*zap.Logger, error) {
	if config.AppConfig.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newNotifier(logger *zap.Logger) notify.Notifier {
	cfg := config.AppConfig.Notify
	if cfg.BotToken == "" {
		logger.Info("BOT_TOKEN not set, admin alerts go to the log")
		return notify.NewLogNotifier(logger)
	}
	notifier, err := notify.NewTelegramNotifier(cfg, logger)
	if err != nil {
		logger.Warn("telegram notifier unavailable, falling back to log", zap.Error(err))
		return notify.NewLogNotifier(logger)
	}
	return notifier
}

func newLedgerService(ledgerRepo repository.LedgerRepository, logger *zap.Logger) service.LedgerService {
	return ledger_service.NewLedgerService(ledgerRepo, config.AppConfig.Realtime.WriteTimeout, logger)
}

func newReconciler(attendanceRepo repository.AttendanceRepository, notifier notify.Notifier, logger *zap.Logger) service.ReconcilerService {
	return reconcile_service.NewReconcilerService(attendanceRepo, notifier, config.AppConfig.Realtime.RefetchConcurrency, logger)
}

func newMembershipService(membershipRepo repository.MembershipRepository, ledgerService service.LedgerService, logger *zap.Logger) service.MembershipService {
	return membership_service.NewMembershipService(membershipRepo, ledgerService, models.DefaultPlans, logger)
}

func newSynchronizer(snapshots service.SnapshotService, logger *zap.Logger) (*realtime.Synchronizer, error) {
	cfg := config.AppConfig.Realtime

	stream, err := realtime.NewPQStream(database.ConnString(), logger)
	if err != nil {
		return nil, err
	}

	fetchers := map[realtime.Resource]realtime.ScopeFetch{
		realtime.ResourceMembership: func(ctx context.Context, scopeID uuid.UUID) (interface{}, error) {
			return snapshots.GetSnapshot(ctx, scopeID)
		},
	}

	return realtime.NewSynchronizer(
		stream,
		realtime.NewCache(cfg.CacheTTL),
		realtime.NewRegistry(),
		fetchers,
		cfg.RefetchConcurrency,
		logger,
	), nil
}

func run(
	lifecycle fx.Lifecycle,
	db *sqlx.DB,
	synchronizer *realtime.Synchronizer,
	memberships service.MembershipService,
	handler *web.Handler,
	logger *zap.Logger,
) {
	mux := http.NewServeMux()
	handler.Register(mux)
	server := &http.Server{
		Addr:    ":" + config.AppConfig.HTTPPort,
		Handler: mux,
	}

	sweepDone := make(chan struct{})
	sweepStop := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go synchronizer.Run()

			go func() {
				defer close(sweepDone)
				ticker := time.NewTicker(config.AppConfig.Realtime.ExpirySweep)
				defer ticker.Stop()
				for {
					select {
					case <-sweepStop:
						return
					case <-ticker.C:
						sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
						if _, err := memberships.ExpireLapsed(sweepCtx, time.Now()); err != nil {
							logger.Error("expiry sweep failed", zap.Error(err))
						}
						cancel()
					}
				}
			}()

			go func() {
				logger.Info("http server listening", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(sweepStop)
			<-sweepDone
			if err := server.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			if err := synchronizer.Close(); err != nil {
				logger.Warn("synchronizer close", zap.Error(err))
			}
			return db.Close()
		},
	})
}
