package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/domain/booking"
	"github.com/stayloft/service-booking/internal/repository"
)

// DailyStatStore persists daily roll-up rows.
type DailyStatStore interface {
	UpsertDailyStat(ctx context.Context, stat *repository.DailyStatModel) error
}

// AnalyticsJob rolls the previous calendar day's booking activity into one
// daily_stats row. The summarized day is derived from the day boundary in
// the reference timezone, so a fire a few seconds or hours after midnight
// still targets the day that just ended.
type AnalyticsJob struct {
	bookings  booking.BookingRepository
	analytics DailyStatStore
	loc       *time.Location
	logger    *zap.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewAnalyticsJob creates the daily reconciliation job.
func NewAnalyticsJob(bookings booking.BookingRepository, analytics DailyStatStore, timezone string, logger *zap.Logger) (*AnalyticsJob, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &AnalyticsJob{
		bookings:  bookings,
		analytics: analytics,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Name implements Job.
func (j *AnalyticsJob) Name() string { return "daily-analytics" }

// Run computes and upserts the roll-up for the day ending at the most
// recent midnight. Reruns for the same day overwrite the same row.
func (j *AnalyticsJob) Run(ctx context.Context) error {
	from, to := j.window()

	activity, err := j.bookings.AggregateDailyActivity(ctx, from, to)
	if err != nil {
		return err
	}

	now := j.now()
	stat := &repository.DailyStatModel{
		Date:          from,
		TotalRevenue:  activity.Revenue,
		TotalBookings: activity.Bookings,
		TotalCancels:  activity.Cancels,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := j.analytics.UpsertDailyStat(ctx, stat); err != nil {
		return err
	}

	j.logger.Info("daily stats reconciled",
		zap.Time("day", from),
		zap.Int64("revenue", activity.Revenue),
		zap.Int64("bookings", activity.Bookings),
		zap.Int64("cancels", activity.Cancels))
	return nil
}

// window returns the inclusive bounds of the previous calendar day in the
// reference timezone.
func (j *AnalyticsJob) window() (from, to time.Time) {
	local := j.now().In(j.loc)
	year, month, day := local.Date()
	boundary := time.Date(year, month, day, 0, 0, 0, 0, j.loc)
	from = boundary.AddDate(0, 0, -1)
	to = boundary.Add(-time.Millisecond)
	return from, to
}
