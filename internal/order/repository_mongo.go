package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "orders"

type orderDocument struct {
	ID              string               `bson:"_id"`
	User            string               `bson:"user"`
	Name            string               `bson:"name,omitempty"`
	Mobile          string               `bson:"mobile,omitempty"`
	Items           []Item               `bson:"items"`
	TotalAmount     primitive.Decimal128 `bson:"totalAmount"`
	Status          PaymentStatus        `bson:"status"`
	TransactionID   string               `bson:"transactionId"`
	PaymentMethod   PaymentMethod        `bson:"paymentMethod"`
	DeliveryStatus  DeliveryStatus       `bson:"deliveryStatus"`
	OrderType       Type                 `bson:"orderType"`
	DeliverySlot    *string              `bson:"deliverySlot"`
	DeliveryAddress Address              `bson:"deliveryAddress"`
	OTPHash         *string              `bson:"otpHash"`
	OTPIssuedAt     *time.Time           `bson:"otpIssuedAt"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func newOrderDocument(o Order) (orderDocument, error) {
	total, err := primitive.ParseDecimal128(o.TotalAmount.String())
	if err != nil {
		return orderDocument{}, fmt.Errorf("encode total amount: %w", err)
	}
	return orderDocument{
		ID:              o.ID,
		User:            o.User,
		Name:            o.Name,
		Mobile:          o.Mobile,
		Items:           o.Items,
		TotalAmount:     total,
		Status:          o.Status,
		TransactionID:   o.TransactionID,
		PaymentMethod:   o.PaymentMethod,
		DeliveryStatus:  o.DeliveryStatus,
		OrderType:       o.OrderType,
		DeliverySlot:    o.DeliverySlot,
		DeliveryAddress: o.DeliveryAddress,
		OTPHash:         o.OTPHash,
		OTPIssuedAt:     o.OTPIssuedAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (d orderDocument) toOrder() (Order, error) {
	total, err := decimal.NewFromString(d.TotalAmount.String())
	if err != nil {
		return Order{}, fmt.Errorf("decode total amount of order %s: %w", d.ID, err)
	}
	return Order{
		ID:              d.ID,
		User:            d.User,
		Name:            d.Name,
		Mobile:          d.Mobile,
		Items:           d.Items,
		TotalAmount:     total,
		Status:          d.Status,
		TransactionID:   d.TransactionID,
		PaymentMethod:   d.PaymentMethod,
		DeliveryStatus:  d.DeliveryStatus,
		OrderType:       d.OrderType,
		DeliverySlot:    d.DeliverySlot,
		DeliveryAddress: d.DeliveryAddress,
		OTPHash:         d.OTPHash,
		OTPIssuedAt:     d.OTPIssuedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// MongoRepository relies on a unique index on transactionId, created by
// the mongo infrastructure package at startup.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

func (r *MongoRepository) Create(ctx context.Context, o Order) (Order, error) {
	doc, err := newOrderDocument(o)
	if err != nil {
		return Order{}, err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Order{}, ErrDuplicateTransaction
		}
		return Order{}, err
	}
	return o, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Order, error) {
	var doc orderDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return doc.toOrder()
}

func (r *MongoRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PaymentMethod != "" {
		filter["paymentMethod"] = f.PaymentMethod
	}
	if f.DeliveryStatus != "" {
		filter["deliveryStatus"] = f.DeliveryStatus
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	orders := []Order{}
	for cur.Next(ctx) {
		var doc orderDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		o, err := doc.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, cur.Err()
}

func (r *MongoRepository) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"transactionId": transactionID}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) Update(ctx context.Context, id string, p Patch, now time.Time) (Order, error) {
	set := bson.M{"updatedAt": now}
	if p.User != nil {
		set["user"] = *p.User
	}
	if p.Items != nil {
		set["items"] = p.Items
	}
	if p.TotalAmount != nil {
		total, err := primitive.ParseDecimal128(p.TotalAmount.String())
		if err != nil {
			return Order{}, fmt.Errorf("encode total amount: %w", err)
		}
		set["totalAmount"] = total
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.PaymentMethod != nil {
		set["paymentMethod"] = *p.PaymentMethod
	}
	if p.DeliveryStatus != nil {
		set["deliveryStatus"] = *p.DeliveryStatus
	}
	if p.DeliveryAddress != nil {
		set["deliveryAddress"] = *p.DeliveryAddress
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc orderDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return doc.toOrder()
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) SetOTP(ctx context.Context, id, hash string, issuedAt time.Time) error {
	update := bson.M{"$set": bson.M{"otpHash": hash, "otpIssuedAt": issuedAt, "updatedAt": issuedAt}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ClearOTP(ctx context.Context, id, hash string, now time.Time) (bool, error) {
	filter := bson.M{"_id": id, "otpHash": hash}
	update := bson.M{"$set": bson.M{"otpHash": nil, "otpIssuedAt": nil, "updatedAt": now}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoRepository) Count(ctx context.Context, status DeliveryStatus) (int, error) {
	filter := bson.M{}
	if status != "" {
		filter["deliveryStatus"] = status
	}
	n, err := r.coll.CountDocuments(ctx, filter)
	return int(n), err
}
