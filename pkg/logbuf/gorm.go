package logbuf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Slot is a named JSON value, the database equivalent of a browser
// storage key.
type Slot struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (Slot) TableName() string {
	return "log_slots"
}

type gormBackend struct {
	db   *gorm.DB
	slot string
}

var _ Backend = (*gormBackend)(nil)

// NewGormBackend opens the configured database and migrates the slot table.
func NewGormBackend(ctx context.Context, cfg *config.LogStorageConfig) (Backend, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case config.LogDriverSQLite:
		dialector = sqlite.Open(cfg.SQLite.Path)
	case config.LogDriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Database,
			cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&Slot{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &gormBackend{db: db, slot: cfg.Slot}, nil
}

// Load implements Backend.
func (g *gormBackend) Load(ctx context.Context) ([]Entry, error) {
	var slot Slot

	err := g.db.WithContext(ctx).Where("name = ?", g.slot).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("loading slot %s: %w", g.slot, err)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(slot.Value), &entries); err != nil {
		return nil, fmt.Errorf("parsing slot %s: %w", g.slot, err)
	}

	return entries, nil
}

// Save implements Backend.
func (g *gormBackend) Save(ctx context.Context, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}

	slot := Slot{Name: g.slot}

	err = g.db.WithContext(ctx).
		Where("name = ?", g.slot).
		Assign(Slot{Value: string(raw), UpdatedAt: time.Now().UTC()}).
		FirstOrCreate(&slot).Error
	if err != nil {
		return fmt.Errorf("saving slot %s: %w", g.slot, err)
	}

	return nil
}

// Clear implements Backend.
func (g *gormBackend) Clear(ctx context.Context) error {
	if err := g.db.WithContext(ctx).Where("name = ?", g.slot).Delete(&Slot{}).Error; err != nil {
		return fmt.Errorf("clearing slot %s: %w", g.slot, err)
	}

	return nil
}

// Close implements Backend.
func (g *gormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// NewBackend builds the backend selected by cfg.Driver.
func NewBackend(ctx context.Context, cfg *config.LogStorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.LogDriverFile:
		return NewFileBackend(cfg.File.Path, cfg.Slot)
	case config.LogDriverSQLite, config.LogDriverPostgres:
		return NewGormBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported log storage driver: %s", cfg.Driver)
	}
}
