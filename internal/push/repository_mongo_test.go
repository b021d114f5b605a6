package push

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoUpsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	sub := Subscription{ID: "s-1", UserID: "a-1", Endpoint: "e1", Keys: Keys{P256dh: "p", Auth: "a"}, CreatedAt: time.Now()}

	mt.Run("inserts new endpoint", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "s-1"}}}},
		))
		repo := &MongoRepository{coll: mt.Coll}

		written, err := repo.Upsert(context.Background(), sub)
		require.NoError(t, err)
		assert.True(t, written)
	})

	mt.Run("same user is a no-op", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))
		repo := &MongoRepository{coll: mt.Coll}

		written, err := repo.Upsert(context.Background(), sub)
		require.NoError(t, err)
		assert.False(t, written)
	})

	mt.Run("lists by user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.push_subscriptions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "s-1"},
			{Key: "userId", Value: "a-1"},
			{Key: "endpoint", Value: "e1"},
			{Key: "keys", Value: bson.D{{Key: "p256dh", Value: "p"}, {Key: "auth", Value: "a"}}},
		}))
		repo := &MongoRepository{coll: mt.Coll}

		subs, err := repo.ListByUserIDs(context.Background(), []string{"a-1"})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "p", subs[0].Keys.P256dh)
	})
}

func TestMongoDeleteAndList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deletes by endpoint", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		repo := &MongoRepository{coll: mt.Coll}

		require.NoError(t, repo.DeleteByEndpoint(context.Background(), "https://push.example.com/e1"))

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "delete", started.CommandName)
		assert.Equal(t, "https://push.example.com/e1", started.Command.Lookup("deletes", "0", "q", "endpoint").StringValue())
	})

	mt.Run("absent endpoint is fine", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		repo := &MongoRepository{coll: mt.Coll}

		assert.NoError(t, repo.DeleteByEndpoint(context.Background(), "gone"))
	})

	mt.Run("lists by user ids", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.push_subscriptions", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "s-1"}, {Key: "userId", Value: "a-1"}, {Key: "endpoint", Value: "e1"}},
			bson.D{{Key: "_id", Value: "s-2"}, {Key: "userId", Value: "a-2"}, {Key: "endpoint", Value: "e2"}},
		))
		repo := &MongoRepository{coll: mt.Coll}

		subs, err := repo.ListByUserIDs(context.Background(), []string{"a-1", "a-2"})
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, "e2", subs[1].Endpoint)

		in := mt.GetStartedEvent().Command.Lookup("filter", "userId", "$in").Array()
		values, err := in.Values()
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.Equal(t, "a-1", values[0].StringValue())
	})

	mt.Run("no users skips the query", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}

		subs, err := repo.ListByUserIDs(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, subs)
		assert.Nil(t, mt.GetStartedEvent())
	})
}
