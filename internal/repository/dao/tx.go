package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrStaleVersion  = errors.New("stale version")
	ErrContention    = errors.New("could not acquire lock within retry budget")
	ErrNoTransaction = errors.New("lock requested outside a transaction")
)

type txKey struct{}

// TxManager runs units of work inside a single database transaction. The
// transaction travels in the context so DAO calls made inside fn join it.
type TxManager struct {
	db          *gorm.DB
	attempts    int
	backoff     time.Duration
	lockTimeout time.Duration
}

func NewTxManager(db *gorm.DB, attempts int, backoff, lockTimeout time.Duration) *TxManager {
	if attempts < 1 {
		attempts = 1
	}
	return &TxManager{
		db:          db,
		attempts:    attempts,
		backoff:     backoff,
		lockTimeout: lockTimeout,
	}
}

// WithTx runs fn in a transaction, retrying the whole unit when it fails on a
// lock timeout, deadlock or serialization failure. Once the retry budget is
// spent ErrContention is returned.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if m.lockTimeout > 0 {
				stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return fn(context.WithValue(ctx, txKey{}, tx))
		})
		if !IsRetryable(err) {
			return err
		}

		zap.L().Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("%w: %v", ErrContention, err)
}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

func lockConn(ctx context.Context) (*gorm.DB, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	return tx, nil
}

// IsRetryable reports whether err was caused by lock acquisition or
// serialization and the whole unit of work can be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleVersion) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.LockNotAvailable, pgerrcode.DeadlockDetected, pgerrcode.SerializationFailure:
		return true
	}
	return false
}

func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
