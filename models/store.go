package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Store is the handle every handler receives. Cache and locker are optional; without them
// reads go straight to the database and sales rely on row locks alone.
type Store struct {
	db       *gorm.DB
	cache    *redis.Client
	locker   *redislock.Client
	logger   *logrus.Logger
	events   bool
	cacheTTL time.Duration

	rowLocks  bool
	txOptions *sql.TxOptions
}

type StoreOption func(*Store)

func WithCache(rdb *redis.Client) StoreOption {
	return func(s *Store) { s.cache = rdb }
}

func WithLocker(locker *redislock.Client) StoreOption {
	return func(s *Store) { s.locker = locker }
}

func WithLogger(logger *logrus.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEvents makes write paths enqueue outbox events for the dispatcher.
func WithEvents(enabled bool) StoreOption {
	return func(s *Store) { s.events = enabled }
}

func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:       db,
		logger:   config.GetLogger(),
		cacheTTL: config.CacheLifespan(),
	}
	// SQLite serialises writers on its own and rejects both FOR UPDATE and isolation levels.
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		s.rowLocks = true
		s.txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Logger() *logrus.Logger {
	return s.logger
}

func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.txOptions != nil {
		return s.db.WithContext(ctx).Transaction(fn, s.txOptions)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
func (s *Store) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.rowLocks {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// productListVersionKey is bumped on every product write; list caching is skipped when it moved
// while the rows were being read.
const productListVersionKey = "Productos:version"

func productListCacheKey(t ProductType) string {
	if t == "" {
		return "Productos:todos"
	}
	return "Productos:" + string(t)
}

// invalidateProducts drops the cached lists that may contain a product of type t.
func (s *Store) invalidateProducts(ctx context.Context, t ProductType) {
	if s.cache == nil {
		return
	}
	if err := config.BumpRedisVersion(ctx, s.cache, productListVersionKey, productListCacheKey(t), productListCacheKey("")); err != nil {
		config.LogError(s.logger, "Store", "invalidateProducts", "remove cached product list", t, err)
	}
}
