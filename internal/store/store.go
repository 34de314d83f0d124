package store

import (
	"context"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nrtstress/internal/protocol"
)

const defaultBatchSize = 500

// Store persists stress runs to PostgreSQL.
type Store struct {
	db        *gorm.DB
	batchSize int
}

// Open connects to PostgreSQL and migrates the run tables.
func Open(option Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(option.DSN()), option.gormConfig())
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if option.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "postgres pool")
		}
		sqlDB.SetMaxOpenConns(option.MaxOpenConns)
	}
	st, err := New(db)
	if err != nil {
		return nil, err
	}
	st.batchSize = option.batchSize()
	return st, nil
}

// New wraps an existing gorm handle and migrates the run tables.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: nil db")
	}
	if err := db.AutoMigrate(&Run{}, &Order{}, &Trade{}); err != nil {
		return nil, errors.Wrap(err, "migrate stress tables")
	}
	return &Store{db: db, batchSize: defaultBatchSize}, nil
}

// DB returns the underlying gorm.DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// SaveRun writes the run row and every captured event in one transaction.
// The run's ID is filled in on success.
func (s *Store) SaveRun(ctx context.Context, run *Run, orders []protocol.OrderEvent, trades []protocol.TradeEvent) error {
	if s == nil || s.db == nil {
		return errors.New("store: not open")
	}
	run.OrderCount = len(orders)
	run.TradeCount = len(trades)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return errors.Wrap(err, "insert run")
		}
		if rows := ordersFromEvents(run.ID, orders); len(rows) != 0 {
			if err := tx.CreateInBatches(rows, s.batchSize).Error; err != nil {
				return errors.Wrap(err, "insert orders")
			}
		}
		if rows := tradesFromEvents(run.ID, trades); len(rows) != 0 {
			if err := tx.CreateInBatches(rows, s.batchSize).Error; err != nil {
				return errors.Wrap(err, "insert trades")
			}
		}
		return nil
	})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
