package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// keep the baseRepo implementation in sync with IRepository interface
var _ IRepository[IEntity] = (*baseRepo[IEntity])(nil)

type IEntity interface {
	CollectionName() string
	GetID() string
}

type IRepository[E IEntity] interface {
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]E, error)
	FindByID(ctx context.Context, docID string) (*E, error)
	InsertMany(ctx context.Context, entities []E, opts ...*options.InsertManyOptions) error
	ReplaceByID(ctx context.Context, entity E) error
	ReplaceAll(ctx context.Context, entities []E) error
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
}

type baseRepo[E IEntity] struct {
	coll *mongo.Collection
}

func newBaseRepo[E IEntity](dbc *mongo.Database) baseRepo[E] {
	var entity E
	return baseRepo[E]{
		coll: dbc.Collection(entity.CollectionName()),
	}
}

func (r *baseRepo[E]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]E, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var entities []E
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepo[E]) FindByID(ctx context.Context, docID string) (*E, error) {
	var entity E
	err := r.coll.FindOne(ctx, bson.M{"_id": docID}).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepo[E]) InsertMany(ctx context.Context, entities []E, opts ...*options.InsertManyOptions) error {
	if len(entities) == 0 {
		return nil
	}
	docs := make([]any, 0, len(entities))
	for _, e := range entities {
		docs = append(docs, e)
	}
	if _, err := r.coll.InsertMany(ctx, docs, opts...); err != nil {
		return fmt.Errorf("insert many: %w", err)
	}
	return nil
}

// ReplaceByID writes entity under its id, inserting it when missing.
func (r *baseRepo[E]) ReplaceByID(ctx context.Context, entity E) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": entity.GetID()}, entity, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace one: %w", err)
	}
	return nil
}

// ReplaceAll swaps the whole collection for entities.
func (r *baseRepo[E]) ReplaceAll(ctx context.Context, entities []E) error {
	if _, err := r.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete many: %w", err)
	}
	return r.InsertMany(ctx, entities, options.InsertMany().SetOrdered(true))
}

func (r *baseRepo[E]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
