package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/levishimwe/Hadathub/internal/api"
	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/logger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the reservation sweeper",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	if err = logger.SetLevel(conf.Log.Level); err != nil {
		zap.L().Warn("invalid log level, keeping default", zap.String("level", conf.Log.Level))
	}
	watchLogLevel()

	e, err := buildEngine(conf)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.feed.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return runSweeper(ctx, e, conf.Engine.SweepInterval)
	})

	s := api.NewServer(conf, e.services)
	srv := &http.Server{
		Addr:              ":" + conf.API.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		zap.L().Info(fmt.Sprintf("starting server at %v", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start the server -> %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		zap.L().Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runSweeper releases stale reservations every interval until ctx is done.
func runSweeper(ctx context.Context, e *engine, interval time.Duration) error {
	if interval <= 0 {
		zap.L().Info("reservation sweeper disabled")
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("gocron.NewScheduler -> %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := e.sweeper.Sweep(ctx)
			if err != nil {
				zap.L().Error("reservation sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				zap.L().Info("released stale reservations", zap.Int("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduler.NewJob -> %w", err)
	}

	scheduler.Start()
	zap.L().Info("reservation sweeper started", zap.Duration("interval", interval))

	<-ctx.Done()
	return scheduler.Shutdown()
}

// watchLogLevel applies log level edits to the config file without a restart.
func watchLogLevel() {
	err := config.Watch(configPath,
		func(conf *config.AppConfig) {
			if err := logger.SetLevel(conf.Log.Level); err != nil {
				zap.L().Warn("ignoring invalid log level", zap.String("level", conf.Log.Level))
				return
			}
			zap.L().Info("log level changed", zap.Stringer("level", logger.Level()))
		},
		func(err error) {
			zap.L().Warn("ignoring invalid config revision", zap.Error(err))
		},
	)
	if err != nil {
		zap.L().Warn("config watcher not started", zap.Error(err))
	}
}
