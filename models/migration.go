package models

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SchemaMigration records one applied migration version.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false" json:"version"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// Migrations is append-only: never edit or renumber an entry once released.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_core_tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&Product{}, &Sale{}, &HistoryEntry{}, &Client{})
		},
	},
	{
		Version: 2,
		Name:    "create_collections_and_out_of_stock",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&Collection{}, &OutOfStock{})
		},
	},
	{
		Version: 3,
		Name:    "create_outbox_events",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&OutboxEvent{})
		},
	},
	{
		Version: 4,
		Name:    "index_sales_by_product_and_date",
		Up: func(tx *gorm.DB) error {
			// Databases bootstrapped before version tracking may already carry it.
			if tx.Migrator().HasIndex(&Sale{}, "idx_ventas_producto_fecha") {
				return nil
			}
			return tx.Exec("CREATE INDEX idx_ventas_producto_fecha ON ventas (producto_id, fecha)").Error
		},
	},
}

func checkMigrationList(list []Migration) error {
	seen := make(map[int]bool, len(list))
	prev := 0
	for _, m := range list {
		if m.Version <= 0 || m.Up == nil {
			return fmt.Errorf("migration %d (%s) is incomplete", m.Version, m.Name)
		}
		if seen[m.Version] {
			return fmt.Errorf("duplicate migration version %d", m.Version)
		}
		if m.Version < prev {
			return fmt.Errorf("migration %d listed after %d", m.Version, prev)
		}
		seen[m.Version] = true
		prev = m.Version
	}
	return nil
}

func appliedVersions(ctx context.Context, db *gorm.DB) (map[int]bool, error) {
	if err := db.WithContext(ctx).AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, err
	}
	var rows []SchemaMigration
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(rows))
	for _, r := range rows {
		applied[r.Version] = true
	}
	return applied, nil
}

// PendingMigrations lists the migrations of list not yet recorded in schema_migrations.
func PendingMigrations(ctx context.Context, db *gorm.DB, list []Migration) ([]Migration, error) {
	if err := checkMigrationList(list); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range list {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// MigrateTable applies every pending migration in order, each in its own transaction
// together with its schema_migrations row, and returns the versions it applied.
func MigrateTable(ctx context.Context, db *gorm.DB, logger *logrus.Logger) ([]int, error) {
	return migrate(ctx, db, Migrations, logger)
}

func migrate(ctx context.Context, db *gorm.DB, list []Migration, logger *logrus.Logger) ([]int, error) {
	pending, err := PendingMigrations(ctx, db, list)
	if err != nil {
		return nil, err
	}
	var done []int
	for _, m := range pending {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: m.Version, Name: m.Name}).Error
		})
		if err != nil {
			return done, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		done = append(done, m.Version)
		if logger != nil {
			logger.WithFields(logrus.Fields{"version": m.Version, "name": m.Name}).Info("migration applied")
		}
	}
	return done, nil
}
