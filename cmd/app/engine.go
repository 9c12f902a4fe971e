package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/levishimwe/Hadathub/internal/api"
	v1 "github.com/levishimwe/Hadathub/internal/api/handler/v1"
	"github.com/levishimwe/Hadathub/internal/cache"
	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/payment"
	"github.com/levishimwe/Hadathub/internal/pkg/qrcode"
	"github.com/levishimwe/Hadathub/internal/repository"
	"github.com/levishimwe/Hadathub/internal/repository/dao"
	"github.com/levishimwe/Hadathub/internal/repository/memory"
	"github.com/levishimwe/Hadathub/internal/service"
)

// engine is the fully wired service graph.
type engine struct {
	services api.Services
	feed     *v1.CheckInFeed
	sweeper  *service.ReservationSweeper
	closers  []func() error
}

func (e *engine) Close() {
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

func buildEngine(conf *config.AppConfig) (*engine, error) {
	e := &engine{}

	repo, err := openRepository(conf, e)
	if err != nil {
		e.Close()
		return nil, err
	}

	availability, err := cache.NewAvailabilityCache(conf.Redis)
	if err != nil {
		zap.L().Warn("redis unavailable, continuing without availability cache", zap.Error(err))
		availability, _ = cache.NewAvailabilityCache(nil)
	}
	e.closers = append(e.closers, availability.Close)

	signer, err := qrcode.NewSigner(conf.QR.Secret)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("qrcode.NewSigner -> %w", err)
	}

	payments := newPaymentGateway(conf.Payment)
	clk := clock.NewSystem()

	opts := []service.Option{
		service.WithAvailabilityCache(availability),
		service.WithRefundConcurrency(conf.Engine.RefundConcurrency),
		service.WithScanConcurrency(conf.Engine.ScanConcurrency),
	}

	venues := service.NewVenueService(repo, clk, opts...)
	events := service.NewEventService(repo, payments, clk, opts...)
	tickets := service.NewTicketService(repo, payments, signer, clk, opts...)

	e.feed = v1.NewCheckInFeed(events, conf.API.AllowedCORSDomains)
	checkIns := service.NewCheckInService(repo, signer, clk, append(opts, service.WithCheckInFeed(e.feed))...)

	e.sweeper = service.NewReservationSweeper(repo, tickets, clk, conf.Engine.ReservationTTL, conf.Engine.SweepBatch)
	e.services = api.Services{
		Venues:   venues,
		Events:   events,
		Tickets:  tickets,
		CheckIns: checkIns,
		Feed:     e.feed,
	}

	return e, nil
}

func openRepository(conf *config.AppConfig, e *engine) (service.TicketingRepository, error) {
	if conf.Store.Driver == "memory" {
		zap.L().Warn("using the in-memory store, data is lost on exit")
		return memory.New(memory.WithRetryBudget(
			conf.Engine.RetryAttempts,
			conf.Engine.RetryBackoff,
			conf.Engine.LockTimeout,
		)), nil
	}

	db, err := openPostgres(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database -> %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		e.closers = append(e.closers, sqlDB.Close)
	}

	tx := dao.NewTxManager(db, conf.Engine.RetryAttempts, conf.Engine.RetryBackoff, conf.Engine.LockTimeout)
	return repository.NewTicketingRepository(
		tx,
		dao.NewVenueDAO(db),
		dao.NewEventDAO(db),
		dao.NewTicketDAO(db),
		dao.NewCheckInDAO(db),
	), nil
}

// openPostgres prefers DATABASE_URL, as set by hosting platforms, over the
// postgres section of the config.
func openPostgres(conf *config.AppConfig) (*gorm.DB, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dao.OpenPostgresWithURL(dbURL)
	}
	return dao.OpenPostgres(conf.Postgres)
}

func newPaymentGateway(conf *config.PaymentConfig) service.PaymentGateway {
	if conf.Provider == "stripe" {
		return payment.NewStripeGateway(conf.StripeSecretKey)
	}
	zap.L().Warn("using the simulated payment gateway")
	return payment.NewSimulatedGateway()
}
