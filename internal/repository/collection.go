package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	UsersCollection    = "users"
	SessionsCollection = "sessions"
)

var errNoDocument = errors.New("document not found")

// collection is the shared CRUD core behind the per-entity repositories. Filters stay
// unexported so callers only see typed methods.
type collection[T any] struct {
	coll *mongo.Collection
}

func newCollection[T any](coll *mongo.Collection) collection[T] {
	return collection[T]{coll: coll}
}

func (c collection[T]) insert(ctx context.Context, doc *T) (bson.ObjectID, error) {
	result, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return bson.ObjectID{}, err
	}
	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return bson.ObjectID{}, errors.New("inserted id is not an ObjectID")
	}
	return id, nil
}

func (c collection[T]) findOne(ctx context.Context, filter bson.D) (T, error) {
	var doc T
	if err := c.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc, errNoDocument
		}
		return doc, err
	}
	return doc, nil
}

func (c collection[T]) findByID(ctx context.Context, id bson.ObjectID) (T, error) {
	return c.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (c collection[T]) find(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c collection[T]) setFields(ctx context.Context, id bson.ObjectID, fields bson.D) error {
	result, err := c.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: fields}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errNoDocument
	}
	return nil
}

func (c collection[T]) deleteOne(ctx context.Context, filter bson.D) (bool, error) {
	result, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (c collection[T]) deleteMany(ctx context.Context, filter bson.D) (int64, error) {
	result, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
