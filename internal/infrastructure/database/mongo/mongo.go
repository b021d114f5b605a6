// Package mongo connects to MongoDB and declares the indexes the
// repositories depend on.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect dials uri, pings the primary and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

type index struct {
	collection string
	model      mongo.IndexModel
}

var indexes = []index{
	{"orders", mongo.IndexModel{
		Keys:    bson.D{{Key: "transactionId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("transactionId_unique"),
	}},
	{"orders", mongo.IndexModel{
		Keys: bson.D{{Key: "deliveryStatus", Value: 1}},
	}},
	{"orders", mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}},
	{"push_subscriptions", mongo.IndexModel{
		Keys:    bson.D{{Key: "endpoint", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("endpoint_unique"),
	}},
	{"push_subscriptions", mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
	}},
	{"admin_users", mongo.IndexModel{
		Keys: bson.D{{Key: "role", Value: 1}, {Key: "isActive", Value: 1}},
	}},
}

// EnsureIndexes creates the indexes if missing. Existing identical indexes
// are left untouched by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, ix := range indexes {
		if _, err := db.Collection(ix.collection).Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.collection, err)
		}
	}
	return nil
}
