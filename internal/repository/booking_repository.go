package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingDomain "github.com/stayloft/service-booking/internal/domain/booking"
	"github.com/stayloft/service-booking/internal/domain/shared"
)

// bookingDocument is the Mongo representation of a booking aggregate.
type bookingDocument struct {
	ID          string                      `bson:"_id"`
	UserID      string                      `bson:"user_id"`
	HotelID     int64                       `bson:"hotel_id"`
	CheckIn     time.Time                   `bson:"check_in"`
	CheckOut    time.Time                   `bson:"check_out"`
	Nights      int                         `bson:"nights"`
	Guests      bookingDomain.Guests        `bson:"guests"`
	TotalAmount int64                       `bson:"total_amount"`
	Currency    string                      `bson:"currency"`
	Status      string                      `bson:"status"`
	Payment     bookingDomain.Payment       `bson:"payment"`
	Contact     bookingDomain.Contact       `bson:"contact"`
	Hotel       bookingDomain.HotelSnapshot `bson:"hotel"`
	ConfirmedAt *time.Time                  `bson:"confirmed_at,omitempty"`
	CancelledAt *time.Time                  `bson:"cancelled_at,omitempty"`
	CancelNote  string                      `bson:"cancel_note,omitempty"`
	CreatedAt   time.Time                   `bson:"created_at"`
	UpdatedAt   time.Time                   `bson:"updated_at"`
}

// MongoBookingRepository is the document-store implementation of
// BookingRepository.
type MongoBookingRepository struct {
	col *mongo.Collection
}

// NewMongoBookingRepository creates a repository over the "bookings"
// collection of the given database.
func NewMongoBookingRepository(db *mongo.Database) *MongoBookingRepository {
	return &MongoBookingRepository{col: db.Collection("bookings")}
}

// EnsureIndexes creates the indexes the overlap and aggregation queries
// depend on. Safe to call on every startup.
func (r *MongoBookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "hotel_id", Value: 1}, {Key: "check_in", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "contact.email", Value: 1}}},
	})
	return err
}

// Insert persists a new booking.
func (r *MongoBookingRepository) Insert(ctx context.Context, b *bookingDomain.Booking) error {
	if _, err := r.col.InsertOne(ctx, toDocument(b)); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// FindByID retrieves a booking by its unique identifier.
func (r *MongoBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var doc bookingDocument
	err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomain(&doc)
}

// FindOverlapping returns still-reserving bookings for the hotel whose stay
// overlaps the given window. The filter spells out the three overlap cases
// (existing contains requested, requested contains existing, partial
// overlap); bounds are inclusive at the day granularity used here.
func (r *MongoBookingRepository) FindOverlapping(ctx context.Context, hotelID int64, window bookingDomain.StayWindow) ([]*bookingDomain.Booking, error) {
	active := make([]string, len(bookingDomain.ActiveStatuses))
	for i, s := range bookingDomain.ActiveStatuses {
		active[i] = string(s)
	}

	filter := bson.M{
		"hotel_id": hotelID,
		"status":   bson.M{"$in": active},
		"$or": []bson.M{
			{
				"check_in":  bson.M{"$lte": window.CheckIn},
				"check_out": bson.M{"$gte": window.CheckOut},
			},
			{
				"check_in":  bson.M{"$gte": window.CheckIn},
				"check_out": bson.M{"$lte": window.CheckOut},
			},
			{
				"check_in":  bson.M{"$lt": window.CheckOut},
				"check_out": bson.M{"$gt": window.CheckIn},
			},
		},
	}

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	defer cur.Close(ctx)

	return decodeAll(ctx, cur)
}

// Update persists state changes to an existing booking.
func (r *MongoBookingRepository) Update(ctx context.Context, b *bookingDomain.Booking) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": b.ID().String()}, toDocument(b))
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if res.MatchedCount == 0 {
		return shared.NewNotFoundError("Booking", b.ID().String())
	}
	return nil
}

// FindByEmail retrieves bookings for a guest email, newest first.
func (r *MongoBookingRepository) FindByEmail(ctx context.Context, email string, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, bson.M{"contact.email": email}, page, limit)
}

// ListAll retrieves all bookings with pagination, newest first.
func (r *MongoBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, bson.M{}, page, limit)
}

func (r *MongoBookingRepository) findPage(ctx context.Context, filter bson.M, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cur.Close(ctx)

	bookings, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// AggregateDailyActivity folds the bookings created in [from, to] into a
// DailyActivity summary with a single aggregation pipeline.
func (r *MongoBookingRepository) AggregateDailyActivity(ctx context.Context, from, to time.Time) (bookingDomain.DailyActivity, error) {
	successful := []string{string(bookingDomain.StatusConfirmed), string(bookingDomain.StatusCompleted)}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"created_at": bson.M{"$gte": from, "$lte": to},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"revenue": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$in": bson.A{"$status", successful}}, "$total_amount", 0},
			}},
			"bookings": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$in": bson.A{"$status", successful}}, 1, 0},
			}},
			"cancels": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(bookingDomain.StatusCancelled)}}, 1, 0},
			}},
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return bookingDomain.DailyActivity{}, fmt.Errorf("failed to aggregate daily activity: %w", err)
	}
	defer cur.Close(ctx)

	var result struct {
		Revenue  int64 `bson:"revenue"`
		Bookings int64 `bson:"bookings"`
		Cancels  int64 `bson:"cancels"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&result); err != nil {
			return bookingDomain.DailyActivity{}, fmt.Errorf("failed to decode daily activity: %w", err)
		}
	}
	return bookingDomain.DailyActivity{
		Revenue:  result.Revenue,
		Bookings: result.Bookings,
		Cancels:  result.Cancels,
	}, nil
}

// --- Conversion helpers ---

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*bookingDomain.Booking, error) {
	var bookings []*bookingDomain.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		b, err := toDomain(&doc)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("booking cursor failed: %w", err)
	}
	return bookings, nil
}

func toDocument(b *bookingDomain.Booking) *bookingDocument {
	return &bookingDocument{
		ID:          b.ID().String(),
		UserID:      b.UserID(),
		HotelID:     b.HotelID(),
		CheckIn:     b.Stay().CheckIn,
		CheckOut:    b.Stay().CheckOut,
		Nights:      b.Nights(),
		Guests:      b.Guests(),
		TotalAmount: b.TotalAmount(),
		Currency:    b.Currency(),
		Status:      string(b.Status()),
		Payment:     b.PaymentState(),
		Contact:     b.Contact(),
		Hotel:       b.Hotel(),
		ConfirmedAt: b.ConfirmedAt(),
		CancelledAt: b.CancelledAt(),
		CancelNote:  b.CancelNote(),
		CreatedAt:   b.CreatedAt(),
		UpdatedAt:   b.UpdatedAt(),
	}
}

func toDomain(doc *bookingDocument) (*bookingDomain.Booking, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id %q: %w", doc.ID, err)
	}
	status, err := bookingDomain.ParseBookingStatus(doc.Status)
	if err != nil {
		return nil, err
	}
	return bookingDomain.ReconstructBooking(
		id,
		doc.UserID,
		doc.HotelID,
		bookingDomain.StayWindow{CheckIn: doc.CheckIn, CheckOut: doc.CheckOut},
		doc.Guests,
		doc.TotalAmount,
		doc.Currency,
		status,
		doc.Payment,
		doc.Contact,
		doc.Hotel,
		doc.ConfirmedAt,
		doc.CancelledAt,
		doc.CancelNote,
		doc.CreatedAt,
		doc.UpdatedAt,
	), nil
}
