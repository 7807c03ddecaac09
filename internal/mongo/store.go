package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BRO3886/restaurant-search/internal/store"
	"github.com/BRO3886/restaurant-search/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type restaurantDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"name"`
	Category string             `bson:"category"`
	Address  string             `bson:"address"`
	Phone    string             `bson:"phone"`
	Photo    string             `bson:"photo,omitempty"`
	Details  string             `bson:"details,omitempty"`
	Version  int64              `bson:"version"`
}

func (d restaurantDoc) toRestaurant() types.Restaurant {
	return types.Restaurant{
		ID:       d.ID.Hex(),
		Name:     d.Name,
		Category: d.Category,
		Address:  d.Address,
		Phone:    d.Phone,
		Photo:    d.Photo,
		Details:  d.Details,
		Version:  d.Version,
	}
}

type restaurantStore struct {
	coll *mongo.Collection
}

// NewStore returns a store backed by coll.
func NewStore(coll *mongo.Collection) store.Store {
	return &restaurantStore{coll: coll}
}

// Connect opens a client against uri and pings it before returning.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	clientOpts := options.Client().ApplyURI(uri).SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return client, nil
}

func (s *restaurantStore) Create(ctx context.Context, in types.RestaurantInput) (types.Restaurant, error) {
	doc := restaurantDoc{
		ID:       primitive.NewObjectID(),
		Name:     in.Name,
		Category: in.Category,
		Address:  in.Address,
		Phone:    in.Phone,
		Photo:    in.Photo,
		Details:  in.Details,
		Version:  1,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return types.Restaurant{}, &store.PrimaryWriteError{Op: "create", Err: err}
	}
	return doc.toRestaurant(), nil
}

func (s *restaurantStore) Update(ctx context.Context, id string, patch types.RestaurantPatch) (types.Restaurant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Restaurant{}, store.ErrNotFound
	}

	update := bson.M{"$inc": bson.M{"version": 1}}
	if set := patchSet(patch); len(set) > 0 {
		update["$set"] = set
	}

	var doc restaurantDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Restaurant{}, store.ErrNotFound
		}
		return types.Restaurant{}, &store.PrimaryWriteError{Op: "update", Err: err}
	}
	return doc.toRestaurant(), nil
}

func (s *restaurantStore) Delete(ctx context.Context, id string) (types.Restaurant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Restaurant{}, store.ErrNotFound
	}

	var doc restaurantDoc
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Restaurant{}, store.ErrNotFound
		}
		return types.Restaurant{}, &store.PrimaryWriteError{Op: "delete", Err: err}
	}
	return doc.toRestaurant(), nil
}

func (s *restaurantStore) Get(ctx context.Context, id string) (types.Restaurant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Restaurant{}, store.ErrNotFound
	}

	var doc restaurantDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Restaurant{}, store.ErrNotFound
		}
		return types.Restaurant{}, fmt.Errorf("failed to get restaurant %s: %w", id, err)
	}
	return doc.toRestaurant(), nil
}

func (s *restaurantStore) List(ctx context.Context) ([]types.Restaurant, error) {
	restaurants := make([]types.Restaurant, 0)
	err := s.Each(ctx, func(r types.Restaurant) error {
		restaurants = append(restaurants, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restaurants, nil
}

func (s *restaurantStore) Each(ctx context.Context, fn func(types.Restaurant) error) error {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc restaurantDoc
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode restaurant: %w", err)
		}
		if err := fn(doc.toRestaurant()); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func patchSet(p types.RestaurantPatch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Photo != nil {
		set["photo"] = *p.Photo
	}
	if p.Details != nil {
		set["details"] = *p.Details
	}
	return set
}
