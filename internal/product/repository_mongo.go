package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "products"

type summaryDocument struct {
	ID           string               `bson:"_id"`
	Name         string               `bson:"name"`
	SellingPrice primitive.Decimal128 `bson:"sellingPrice"`
	ImageURL     string               `bson:"imageUrl"`
	Category     string               `bson:"category"`
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

func (r *MongoRepository) CountByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return int(n), err
}

func (r *MongoRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.EstimatedDocumentCount(ctx)
	return int(n), err
}

func (r *MongoRepository) FindSummaries(ctx context.Context, ids []string) ([]Summary, error) {
	if len(ids) == 0 {
		return []Summary{}, nil
	}

	projection := bson.M{"name": 1, "sellingPrice": 1, "imageUrl": 1, "category": 1}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Summary{}
	for cur.Next(ctx) {
		var doc summaryDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(doc.SellingPrice.String())
		if err != nil {
			return nil, fmt.Errorf("decode selling price of product %s: %w", doc.ID, err)
		}
		out = append(out, Summary{
			ID:           doc.ID,
			Name:         doc.Name,
			SellingPrice: price,
			ImageURL:     doc.ImageURL,
			Category:     doc.Category,
		})
	}
	return out, cur.Err()
}
