package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/loiphan2202/BAT/db"
	"github.com/loiphan2202/BAT/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps the ledger in MongoDB. Approval uses a multi-document
// transaction, so the server must run as a replica set.
type MongoStore struct {
	client       *mongo.Client
	bookings     *mongo.Collection
	destinations *mongo.Collection
	requests     *mongo.Collection
	users        *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{
		client:       database.Client(),
		bookings:     database.Collection(db.BookingsCollection),
		destinations: database.Collection(db.DestinationsCollection),
		requests:     database.Collection(db.RequestsCollection),
		users:        database.Collection(db.UsersCollection),
	}
}

// EnsureIndexes creates the unique keys the workflows rely on: one booking
// per payment session, one destination per approved request.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "paymentRef", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_payment_ref"),
		},
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_created"),
		},
	}); err != nil {
		return err
	}
	if _, err := s.destinations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sourceRequest", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_source_request"),
	}); err != nil {
		return err
	}
	_, err := s.requests.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_created"),
	})
	return err
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

func insertErr(err error) error {
	if isDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func findErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

// --- bookings ---

func (s *MongoStore) InsertBooking(ctx context.Context, b *models.Booking) error {
	_, err := s.bookings.InsertOne(ctx, b)
	return insertErr(err)
}

func (s *MongoStore) FindBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := s.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, findErr(err)
	}
	return &b, nil
}

func (s *MongoStore) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, int64, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := s.bookings.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cursor, err := s.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (s *MongoStore) SetBookingStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) (*models.Booking, error) {
	var b models.Booking
	err := s.bookings.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": at}},
		returnAfter,
	).Decode(&b)
	if err != nil {
		return nil, findErr(err)
	}
	return &b, nil
}

func (s *MongoStore) UpdateBookingDetails(ctx context.Context, id, ownerID string, p models.BookingDetailsPatch, at time.Time) (*models.Booking, error) {
	set := bson.M{"updatedAt": at}
	if p.Travelers != nil {
		set["travelers"] = *p.Travelers
	}
	if p.SpecialRequests != nil {
		set["specialRequests"] = *p.SpecialRequests
	}

	var b models.Booking
	err := s.bookings.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user": ownerID},
		bson.M{"$set": set},
		returnAfter,
	).Decode(&b)
	if err != nil {
		return nil, findErr(err)
	}
	return &b, nil
}

func (s *MongoStore) DeleteBooking(ctx context.Context, id string) error {
	res, err := s.bookings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- destinations ---

func (s *MongoStore) InsertDestination(ctx context.Context, d *models.Destination) error {
	_, err := s.destinations.InsertOne(ctx, d)
	return insertErr(err)
}

func (s *MongoStore) FindDestination(ctx context.Context, id string) (*models.Destination, error) {
	var d models.Destination
	if err := s.destinations.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, findErr(err)
	}
	return &d, nil
}

func (s *MongoStore) ListDestinations(ctx context.Context) ([]models.Destination, error) {
	cursor, err := s.destinations.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Destination{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) DestinationsByID(ctx context.Context, ids []string) (map[string]models.Destination, error) {
	out := map[string]models.Destination{}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.destinations.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var d models.Destination
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, cursor.Err()
}

// --- requests ---

func (s *MongoStore) InsertRequest(ctx context.Context, r *models.DestinationRequest) error {
	_, err := s.requests.InsertOne(ctx, r)
	return insertErr(err)
}

func (s *MongoStore) FindRequest(ctx context.Context, id string) (*models.DestinationRequest, error) {
	var r models.DestinationRequest
	if err := s.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, findErr(err)
	}
	return &r, nil
}

func (s *MongoStore) ListRequests(ctx context.Context, userID string) ([]models.DestinationRequest, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user"] = userID
	}
	cursor, err := s.requests.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.DestinationRequest{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func requestPatchSet(p models.RequestPatch, at time.Time) bson.M {
	set := bson.M{"updatedAt": at}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Landscape != nil {
		set["landscape"] = *p.Landscape
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Image != nil {
		set["image"] = *p.Image
	}
	if p.Rating != nil {
		set["rating"] = *p.Rating
	}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.Duration != nil {
		set["duration"] = *p.Duration
	}
	if p.Popular != nil {
		set["popular"] = *p.Popular
	}
	return set
}

func (s *MongoStore) EditPendingRequest(ctx context.Context, id string, p models.RequestPatch, at time.Time) (*models.DestinationRequest, error) {
	return s.conditionalRequestUpdate(ctx, id, models.RequestPending, bson.M{"$set": requestPatchSet(p, at)})
}

func (s *MongoStore) TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (*models.DestinationRequest, error) {
	return s.conditionalRequestUpdate(ctx, id, from, bson.M{"$set": bson.M{"status": to, "updatedAt": at}})
}

// conditionalRequestUpdate applies update only while the request is in
// status want. A miss is classified afterwards as not found or conflict.
func (s *MongoStore) conditionalRequestUpdate(ctx context.Context, id string, want models.RequestStatus, update bson.M) (*models.DestinationRequest, error) {
	var r models.DestinationRequest
	err := s.requests.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": want}, update, returnAfter).Decode(&r)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	n, cerr := s.requests.CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (s *MongoStore) ApproveRequest(ctx context.Context, id string, d *models.Destination, at time.Time) (*models.DestinationRequest, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		r, err := s.conditionalRequestUpdate(sc, id, models.RequestPending,
			bson.M{"$set": bson.M{"status": models.RequestApproved, "updatedAt": at}})
		if err != nil {
			return nil, err
		}
		d.DestinationContent = r.DestinationContent
		d.SourceRequest = r.ID
		if _, err := s.destinations.InsertOne(sc, d); err != nil {
			return nil, insertErr(err)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.DestinationRequest), nil
}

func (s *MongoStore) DeleteRequest(ctx context.Context, id string) error {
	res, err := s.requests.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- users ---

func (s *MongoStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, findErr(err)
	}
	return &u, nil
}

func (s *MongoStore) UsersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := map[string]models.User{}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1, "email": 1, "googleDisplayName": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var u models.User
		if err := cursor.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cursor.Err()
}
