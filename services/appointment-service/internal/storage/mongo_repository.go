package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paventhan183/dr-appointment/libs/mongox"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultCollection = "appointments"

type serviceDocument struct {
	Description string  `bson:"description"`
	Cost        float64 `bson:"cost"`
}

// appointmentDocument is the stored shape. Fields written by other clients
// (such as a version counter) are ignored on decode.
type appointmentDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	Phone            string             `bson:"phone,omitempty"`
	Date             string             `bson:"date"`
	Time             string             `bson:"time"`
	Services         []serviceDocument  `bson:"services"`
	ConfirmationSent bool               `bson:"confirmationSent"`
	ReviewSent       bool               `bson:"reviewSent"`
	BillUpdateFlag   bool               `bson:"billupdateflag"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

type MongoRepository struct {
	client *mongox.Client
	coll   *mongo.Collection
	now    func() time.Time
}

func NewMongoRepository(client *mongox.Client, collection string) *MongoRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoRepository{
		client: client,
		coll:   client.Database().Collection(collection),
		now:    time.Now,
	}
}

// EnsureIndexes creates the indexes backing the listing and phone lookups.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}}},
		{Keys: bson.D{{Key: "phone", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) List(ctx context.Context) ([]model.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}})
	return r.find(ctx, bson.D{}, opts)
}

func (r *MongoRepository) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	return r.find(ctx, bson.D{{Key: "date", Value: date}}, opts)
}

func (r *MongoRepository) FindByPhone(ctx context.Context, phone, date string) (model.Appointment, error) {
	phone, date, err := phoneQuery(phone, date)
	if err != nil {
		return model.Appointment{}, err
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}})
	return r.findOne(ctx, phoneFilter(phone, date), opts)
}

func (r *MongoRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return model.Appointment{}, err
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoRepository) Sample(ctx context.Context) (model.Appointment, error) {
	return r.findOne(ctx, bson.D{})
}

func (r *MongoRepository) Create(ctx context.Context, draft model.Draft) (model.Appointment, error) {
	appt, err := draft.Build()
	if err != nil {
		return model.Appointment{}, err
	}
	doc := toDocument(appt)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = r.timestamp()
	doc.UpdatedAt = doc.CreatedAt

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return fromDocument(doc), nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, patch model.Patch) (model.Appointment, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return model.Appointment{}, err
	}
	changes, err := patch.Validate()
	if err != nil {
		return model.Appointment{}, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.D{{Key: "$set", Value: setDocument(changes, r.timestamp())}}
	var doc appointmentDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Appointment{}, model.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	return fromDocument(doc), nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete appointments: %w", err)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Close(ctx)
}

func (r *MongoRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]model.Appointment, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []appointmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	out := make([]model.Appointment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}
	return out, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (model.Appointment, error) {
	var doc appointmentDocument
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Appointment{}, model.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("find appointment: %w", err)
	}
	return fromDocument(doc), nil
}

// timestamp is truncated to the millisecond precision BSON dates keep, so the
// record returned by Create equals what a later read decodes.
func (r *MongoRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, model.InvalidArgument("malformed appointment id %q", id)
	}
	return oid, nil
}

func phoneFilter(phone, date string) bson.D {
	filter := bson.D{{Key: "phone", Value: phone}}
	if date != "" {
		filter = append(filter, bson.E{Key: "date", Value: date})
	}
	return filter
}

func setDocument(c model.Changes, now time.Time) bson.D {
	set := bson.D{}
	if c.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *c.Name})
	}
	if c.Phone != nil {
		set = append(set, bson.E{Key: "phone", Value: *c.Phone})
	}
	if c.Date != nil {
		set = append(set, bson.E{Key: "date", Value: *c.Date})
	}
	if c.Time != nil {
		set = append(set, bson.E{Key: "time", Value: *c.Time})
	}
	if c.SetServices {
		set = append(set, bson.E{Key: "services", Value: toServiceDocuments(c.Services)})
	}
	if c.ConfirmationSent != nil {
		set = append(set, bson.E{Key: "confirmationSent", Value: *c.ConfirmationSent})
	}
	if c.ReviewSent != nil {
		set = append(set, bson.E{Key: "reviewSent", Value: *c.ReviewSent})
	}
	if c.BillUpdateFlag != nil {
		set = append(set, bson.E{Key: "billupdateflag", Value: *c.BillUpdateFlag})
	}
	return append(set, bson.E{Key: "updatedAt", Value: now})
}

func toDocument(a model.Appointment) appointmentDocument {
	return appointmentDocument{
		Name:             a.Name,
		Phone:            a.Phone,
		Date:             a.Date,
		Time:             a.Time,
		Services:         toServiceDocuments(a.Services),
		ConfirmationSent: a.ConfirmationSent,
		ReviewSent:       a.ReviewSent,
		BillUpdateFlag:   a.BillUpdateFlag,
	}
}

func toServiceDocuments(in []model.Service) []serviceDocument {
	out := make([]serviceDocument, 0, len(in))
	for _, s := range in {
		out = append(out, serviceDocument{Description: s.Description, Cost: s.Cost})
	}
	return out
}

// fromDocument is the outward transform: _id becomes a hex id string.
func fromDocument(doc appointmentDocument) model.Appointment {
	services := make([]model.Service, 0, len(doc.Services))
	for _, s := range doc.Services {
		services = append(services, model.Service{Description: s.Description, Cost: s.Cost})
	}
	a := model.Appointment{
		ID:               doc.ID.Hex(),
		Name:             doc.Name,
		Phone:            doc.Phone,
		Date:             doc.Date,
		Time:             doc.Time,
		Services:         services,
		ConfirmationSent: doc.ConfirmationSent,
		ReviewSent:       doc.ReviewSent,
		BillUpdateFlag:   doc.BillUpdateFlag,
	}
	if !doc.CreatedAt.IsZero() {
		t := doc.CreatedAt.UTC()
		a.CreatedAt = &t
	}
	if !doc.UpdatedAt.IsZero() {
		t := doc.UpdatedAt.UTC()
		a.UpdatedAt = &t
	}
	return a
}
