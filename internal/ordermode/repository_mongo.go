package ordermode

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "order_modes"

type modeDocument struct {
	ID                string    `bson:"_id"`
	IsQuickActive     bool      `bson:"isQuickActive"`
	IsScheduledActive bool      `bson:"isScheduledActive"`
	UpdatedBy         *string   `bson:"updatedBy,omitempty"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

func (d modeDocument) toMode() OrderMode {
	return OrderMode{
		IsQuickActive:     d.IsQuickActive,
		IsScheduledActive: d.IsScheduledActive,
		UpdatedBy:         d.UpdatedBy,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// GetOrCreate upserts on the fixed _id with $setOnInsert, so an existing
// record is returned untouched. Two concurrent upserts can race on the _id
// index; the loser gets a duplicate key error and simply reads the winner's
// document.
func (r *MongoRepository) GetOrCreate(ctx context.Context, now time.Time) (OrderMode, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"isQuickActive":     true,
		"isScheduledActive": true,
		"createdAt":         now,
		"updatedAt":         now,
	}}
	return r.upsert(ctx, update)
}

func (r *MongoRepository) Update(ctx context.Context, p Patch, now time.Time) (OrderMode, error) {
	set := bson.M{"updatedAt": now}
	onInsert := bson.M{"createdAt": now}
	if p.IsQuickActive != nil {
		set["isQuickActive"] = *p.IsQuickActive
	} else {
		onInsert["isQuickActive"] = true
	}
	if p.IsScheduledActive != nil {
		set["isScheduledActive"] = *p.IsScheduledActive
	} else {
		onInsert["isScheduledActive"] = true
	}
	if p.UpdatedBy != "" {
		set["updatedBy"] = p.UpdatedBy
	}
	return r.upsert(ctx, bson.M{"$set": set, "$setOnInsert": onInsert})
}

func (r *MongoRepository) upsert(ctx context.Context, update bson.M) (OrderMode, error) {
	filter := bson.M{"_id": SingletonKey}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc modeDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return OrderMode{}, err
	}
	return doc.toMode(), nil
}
