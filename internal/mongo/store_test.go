package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/BRO3886/restaurant-search/internal/store"
	"github.com/BRO3886/restaurant-search/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const ns = "restaurantDB.restaurants"

func restaurantBSON(id primitive.ObjectID, name, category string, version int64) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "category", Value: category},
		{Key: "address", Value: "12 Elm St"},
		{Key: "phone", Value: "+15551234567"},
		{Key: "version", Value: version},
	}
}

func TestRestaurantStore_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns id and first version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := NewStore(mt.Coll)

		r, err := s.Create(context.Background(), types.RestaurantInput{
			Name:     "Green Table",
			Category: "Vegan",
			Address:  "12 Elm St",
			Phone:    "+15551234567",
		})
		require.NoError(mt, err)
		assert.True(mt, primitive.IsValidObjectID(r.ID))
		assert.Equal(mt, int64(1), r.Version)
		assert.Equal(mt, "Green Table", r.Name)
	})

	mt.Run("write error is a primary write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		s := NewStore(mt.Coll)

		_, err := s.Create(context.Background(), types.RestaurantInput{Name: "Dup"})
		var pwe *store.PrimaryWriteError
		require.True(mt, errors.As(err, &pwe))
		assert.Equal(mt, "create", pwe.Op)
	})
}

func TestRestaurantStore_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			restaurantBSON(id, "Green Table", "Vegan", 2)))
		s := NewStore(mt.Coll)

		r, err := s.Get(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), r.ID)
		assert.Equal(mt, "Vegan", r.Category)
		assert.Equal(mt, int64(2), r.Version)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		s := NewStore(mt.Coll)

		_, err := s.Get(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		s := NewStore(mt.Coll)

		_, err := s.Get(context.Background(), "not-an-id")
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})
}

func TestRestaurantStore_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns updated record", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: restaurantBSON(id, "Green Table", "Bistro", 2),
		}))
		s := NewStore(mt.Coll)

		category := "Bistro"
		r, err := s.Update(context.Background(), id.Hex(), types.RestaurantPatch{Category: &category})
		require.NoError(mt, err)
		assert.Equal(mt, "Bistro", r.Category)
		assert.Equal(mt, int64(2), r.Version)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		s := NewStore(mt.Coll)

		name := "x"
		_, err := s.Update(context.Background(), primitive.NewObjectID().Hex(), types.RestaurantPatch{Name: &name})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("command error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    91,
			Name:    "ShutdownInProgress",
			Message: "shutting down",
		}))
		s := NewStore(mt.Coll)

		name := "x"
		_, err := s.Update(context.Background(), primitive.NewObjectID().Hex(), types.RestaurantPatch{Name: &name})
		var pwe *store.PrimaryWriteError
		require.True(mt, errors.As(err, &pwe))
		assert.Equal(mt, "update", pwe.Op)
	})
}

func TestRestaurantStore_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns deleted record", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: restaurantBSON(id, "Green Table", "Vegan", 4),
		}))
		s := NewStore(mt.Coll)

		r, err := s.Delete(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), r.ID)
		assert.Equal(mt, int64(4), r.Version)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		s := NewStore(mt.Coll)

		_, err := s.Delete(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})
}

func TestRestaurantStore_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("all records", func(mt *mtest.T) {
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			restaurantBSON(a, "Green Table", "Vegan", 1),
			restaurantBSON(b, "Red Door", "Bistro", 1),
		))
		s := NewStore(mt.Coll)

		list, err := s.List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, list, 2)
		assert.Equal(mt, a.Hex(), list[0].ID)
		assert.Equal(mt, "Red Door", list[1].Name)
	})

	mt.Run("empty is not nil", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		s := NewStore(mt.Coll)

		list, err := s.List(context.Background())
		require.NoError(mt, err)
		assert.NotNil(mt, list)
		assert.Empty(mt, list)
	})
}

func TestPatchSet(t *testing.T) {
	name, photo := "New", ""
	set := patchSet(types.RestaurantPatch{Name: &name, Photo: &photo})

	assert.Equal(t, bson.M{"name": "New", "photo": ""}, set)
	assert.Empty(t, patchSet(types.RestaurantPatch{}))
}
