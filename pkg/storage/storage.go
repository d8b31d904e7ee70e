// Package storage persists scan results and the dish catalog with gorm.
package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menu-scan/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the database access layer.
type Repository struct {
	db *gorm.DB
}

// Open connects to Postgres.
func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the schema.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&models.ScanRecord{}, &models.Dish{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveScan inserts a scan record.
func (r *Repository) SaveScan(ctx context.Context, rec *models.ScanRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}

// GetScan looks a scan up by request ID.
func (r *Repository) GetScan(ctx context.Context, requestID string) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}
	return &rec, nil
}

// ListScans returns the most recent scans first.
func (r *Repository) ListScans(ctx context.Context, limit, offset int) ([]models.ScanRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var recs []models.ScanRecord
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return recs, nil
}

// ListDishes returns the whole catalog.
func (r *Repository) ListDishes(ctx context.Context) ([]models.Dish, error) {
	var dishes []models.Dish
	if err := r.db.WithContext(ctx).Order("id").Find(&dishes).Error; err != nil {
		return nil, fmt.Errorf("failed to list dishes: %w", err)
	}
	return dishes, nil
}

// SaveDishes inserts catalog entries in batches.
func (r *Repository) SaveDishes(ctx context.Context, dishes []models.Dish) error {
	if len(dishes) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(dishes, 100).Error; err != nil {
		return fmt.Errorf("failed to save dishes: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
