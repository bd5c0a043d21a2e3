package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingMirrorModel is the relational projection of an operational-store
// booking. Keyed by the source booking id so redelivered events collapse
// into a single row.
type BookingMirrorModel struct {
	BookingID     string    `gorm:"primaryKey;type:varchar(36)"`
	UserID        string    `gorm:"type:varchar(64);index"`
	HotelID       int64     `gorm:"index"`
	HotelName     string    `gorm:"type:varchar(255)"`
	CustomerName  string    `gorm:"type:varchar(255)"`
	CustomerEmail string    `gorm:"type:varchar(255);index"`
	CheckIn       time.Time `gorm:"index"`
	CheckOut      time.Time
	Nights        int
	TotalAmount   int64
	Currency      string `gorm:"type:varchar(8)"`
	Status        string `gorm:"type:varchar(32);index"`
	PaymentStatus string `gorm:"type:varchar(32)"`
	SourceCreated time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the default table name.
func (BookingMirrorModel) TableName() string {
	return "booking_mirror"
}

// GormMirrorRepository maintains the analytics-side copy of bookings.
type GormMirrorRepository struct {
	db *gorm.DB
}

// NewGormMirrorRepository creates a mirror repository backed by the given
// database handle.
func NewGormMirrorRepository(db *gorm.DB) *GormMirrorRepository {
	return &GormMirrorRepository{db: db}
}

// Upsert inserts the mirror row or, when the booking already exists,
// overwrites its mutable columns. Identity and source-creation columns are
// never touched on conflict.
func (r *GormMirrorRepository) Upsert(ctx context.Context, m *BookingMirrorModel) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "booking_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hotel_name", "customer_name", "customer_email",
			"check_in", "check_out", "nights",
			"total_amount", "currency",
			"status", "payment_status", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert booking mirror: %w", err)
	}
	return nil
}

// FindByBookingID retrieves a mirror row by its source booking id.
func (r *GormMirrorRepository) FindByBookingID(ctx context.Context, bookingID string) (*BookingMirrorModel, error) {
	var m BookingMirrorModel
	if err := r.db.WithContext(ctx).First(&m, "booking_id = ?", bookingID).Error; err != nil {
		return nil, fmt.Errorf("failed to find booking mirror: %w", err)
	}
	return &m, nil
}
