package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Флаги мошенничества в MongoDB
type FlagsDB struct {
	mgo  *mongo.Client
	coll *mongo.Collection
}

var _ interf.FlagStorage = (*FlagsDB)(nil)

type flagDocument struct {
	ID         string         `bson:"id"`
	UserID     string         `bson:"userId"`
	BrandID    string         `bson:"brandId,omitempty"`
	Severity   string         `bson:"severity"`
	Reason     string         `bson:"reason"`
	Details    map[string]any `bson:"details,omitempty"`
	Status     string         `bson:"status"`
	ReviewedBy string         `bson:"reviewedBy,omitempty"`
	ReviewedAt *time.Time     `bson:"reviewedAt,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt"`
}

func NewFlagsDB(ctx context.Context, cfg config.Mongo) (*FlagsDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.URI == "" {
		return nil, fmt.Errorf("env FRAUD_MONGO is not set")
	}
	opts := options.Client().ApplyURI("mongodb://" + cfg.URI)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}
	database := cfg.Database
	if database == "" {
		database = "rewardsDB"
	}
	coll := client.Database(database).Collection("fraud_flags")

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &FlagsDB{client, coll}, nil
}

func (f *FlagsDB) Close(ctx context.Context) error {
	return f.mgo.Disconnect(ctx)
}

func (f *FlagsDB) CreateFlag(ctx context.Context, flag model.FraudFlag) (model.FraudFlag, error) {
	flag.ID = uuid.New()
	flag.CreatedAt = time.Now().UTC()
	if flag.Status == "" {
		flag.Status = model.FlagPending
	}
	_, err := f.coll.InsertOne(ctx, toFlagDocument(flag))
	if err != nil {
		return model.FraudFlag{}, model.WrapInfra("CreateFlag", err)
	}
	return flag, nil
}

func (f *FlagsDB) GetFlag(ctx context.Context, id uuid.UUID) (model.FraudFlag, error) {
	var doc flagDocument
	err := f.coll.FindOne(ctx, bson.M{"id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.FraudFlag{}, model.NewNotFoundError("fraud flag", id.String())
		}
		return model.FraudFlag{}, model.WrapInfra("GetFlag", err)
	}
	return fromFlagDocument(doc)
}

func (f *FlagsDB) ListFlags(ctx context.Context, filter model.FlagFilter) ([]model.FraudFlag, error) {
	query := bson.M{}
	if filter.BrandID != "" {
		query["brandId"] = filter.BrandID
	}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(listLimit(filter.Limit))).
		SetSkip(int64(filter.Offset))

	result, err := f.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, model.WrapInfra("ListFlags", err)
	}
	defer result.Close(ctx)

	flags := []model.FraudFlag{}
	for result.Next(ctx) {
		var doc flagDocument
		if err := result.Decode(&doc); err != nil {
			return nil, model.WrapInfra("ListFlags", err)
		}
		flag, err := fromFlagDocument(doc)
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}
	return flags, model.WrapInfra("ListFlags", result.Err())
}

func (f *FlagsDB) UpdateFlagStatus(ctx context.Context, id uuid.UUID, status model.FraudStatus, reviewer string, at time.Time) (model.FraudFlag, error) {
	at = at.UTC()
	update := bson.M{"$set": bson.M{
		"status":     string(status),
		"reviewedBy": reviewer,
		"reviewedAt": at,
	}}
	res, err := f.coll.UpdateOne(ctx, bson.M{"id": id.String()}, update)
	if err != nil {
		return model.FraudFlag{}, model.WrapInfra("UpdateFlagStatus", err)
	}
	if res.MatchedCount == 0 {
		return model.FraudFlag{}, model.NewNotFoundError("fraud flag", id.String())
	}
	return f.GetFlag(ctx, id)
}

func toFlagDocument(flag model.FraudFlag) flagDocument {
	return flagDocument{
		ID:         flag.ID.String(),
		UserID:     flag.UserID,
		BrandID:    flag.BrandID,
		Severity:   string(flag.Severity),
		Reason:     flag.Reason,
		Details:    flag.Details,
		Status:     string(flag.Status),
		ReviewedBy: flag.ReviewedBy,
		ReviewedAt: flag.ReviewedAt,
		CreatedAt:  flag.CreatedAt,
	}
}

func fromFlagDocument(doc flagDocument) (model.FraudFlag, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return model.FraudFlag{}, model.WrapInfra("decode flag", err)
	}
	flag := model.FraudFlag{
		ID:         id,
		UserID:     doc.UserID,
		BrandID:    doc.BrandID,
		Severity:   model.FraudSeverity(doc.Severity),
		Reason:     doc.Reason,
		Details:    doc.Details,
		Status:     model.FraudStatus(doc.Status),
		ReviewedBy: doc.ReviewedBy,
		CreatedAt:  doc.CreatedAt.UTC(),
	}
	if doc.ReviewedAt != nil {
		t := doc.ReviewedAt.UTC()
		flag.ReviewedAt = &t
	}
	return flag, nil
}
