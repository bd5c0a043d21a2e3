package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyStatModel is one row per calendar day of rolled-up activity. The
// date column stores midnight of the summarized day in the reporting
// timezone.
type DailyStatModel struct {
	Date            time.Time `gorm:"primaryKey;type:date"`
	TotalRevenue    int64
	TotalBookings   int64
	TotalCancels    int64
	NewUsers        int64
	ActiveUsers     int64
	OccupancyRate   float64
	AvgBookingValue int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the default table name.
func (DailyStatModel) TableName() string {
	return "daily_stats"
}

// InteractionModel is a recorded user interaction consumed by the
// model-training gate.
type InteractionModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"type:varchar(64);index"`
	Kind      string `gorm:"type:varchar(32)"`
	HotelID   int64
	CreatedAt time.Time `gorm:"index"`
}

// TableName overrides the default table name.
func (InteractionModel) TableName() string {
	return "interactions"
}

// TrainingMetricModel records one training-run outcome.
type TrainingMetricModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Trigger      string `gorm:"type:varchar(16)"`
	Interactions int64
	Succeeded    bool
	Output       string `gorm:"type:text"`
	StartedAt    time.Time
	FinishedAt   time.Time
	CreatedAt    time.Time
}

// TableName overrides the default table name.
func (TrainingMetricModel) TableName() string {
	return "training_metrics"
}

// GormAnalyticsRepository persists daily stats, interactions and training
// metrics in the analytics store.
type GormAnalyticsRepository struct {
	db *gorm.DB
}

// NewGormAnalyticsRepository creates an analytics repository backed by the
// given database handle.
func NewGormAnalyticsRepository(db *gorm.DB) *GormAnalyticsRepository {
	return &GormAnalyticsRepository{db: db}
}

// UpsertDailyStat writes the computed columns for a day's row. Reruns for
// the same day overwrite those columns instead of inserting duplicates;
// columns this job does not compute keep their values.
func (r *GormAnalyticsRepository) UpsertDailyStat(ctx context.Context, stat *DailyStatModel) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_revenue", "total_bookings", "total_cancels", "updated_at",
		}),
	}).Create(stat).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily stat: %w", err)
	}
	return nil
}

// FindDailyStat retrieves the row for a given day, nil if none exists.
func (r *GormAnalyticsRepository) FindDailyStat(ctx context.Context, date time.Time) (*DailyStatModel, error) {
	var stat DailyStatModel
	err := r.db.WithContext(ctx).First(&stat, "date = ?", date).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find daily stat: %w", err)
	}
	return &stat, nil
}

// CountRecentInteractions counts interactions recorded after the cutoff.
func (r *GormAnalyticsRepository) CountRecentInteractions(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&InteractionModel{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

// RecordTrainingMetric persists the outcome of one training run.
func (r *GormAnalyticsRepository) RecordTrainingMetric(ctx context.Context, metric *TrainingMetricModel) error {
	if err := r.db.WithContext(ctx).Create(metric).Error; err != nil {
		return fmt.Errorf("failed to record training metric: %w", err)
	}
	return nil
}

// LatestTrainingMetric returns the most recent training run, nil if the
// model was never trained.
func (r *GormAnalyticsRepository) LatestTrainingMetric(ctx context.Context) (*TrainingMetricModel, error) {
	var metric TrainingMetricModel
	err := r.db.WithContext(ctx).Order("started_at DESC").First(&metric).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest training metric: %w", err)
	}
	return &metric, nil
}
