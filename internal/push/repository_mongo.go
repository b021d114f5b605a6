package push

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "push_subscriptions"

type subscriptionDocument struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"userId"`
	Endpoint   string    `bson:"endpoint"`
	Keys       Keys      `bson:"keys"`
	Browser    string    `bson:"browser,omitempty"`
	Device     string    `bson:"device,omitempty"`
	LastActive time.Time `bson:"lastActive"`
	CreatedAt  time.Time `bson:"createdAt"`
}

// MongoRepository relies on a unique index on endpoint.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// Upsert matches the endpoint only when it belongs to someone else. When
// the same user already holds it the upsert falls through to an insert,
// which the unique endpoint index rejects; that rejection is the no-op.
func (r *MongoRepository) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	filter := bson.M{"endpoint": sub.Endpoint, "userId": bson.M{"$ne": sub.UserID}}
	update := bson.M{
		"$set": bson.M{
			"userId":     sub.UserID,
			"keys":       sub.Keys,
			"browser":    sub.Browser,
			"device":     sub.Device,
			"lastActive": sub.LastActive,
		},
		"$setOnInsert": bson.M{"_id": sub.ID, "createdAt": sub.CreatedAt},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

func (r *MongoRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"endpoint": endpoint})
	return err
}

func (r *MongoRepository) ListByUserIDs(ctx context.Context, userIDs []string) ([]Subscription, error) {
	if len(userIDs) == 0 {
		return []Subscription{}, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{"userId": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	subs := make([]Subscription, 0)
	for cur.Next(ctx) {
		var doc subscriptionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		subs = append(subs, Subscription(doc))
	}
	return subs, cur.Err()
}
