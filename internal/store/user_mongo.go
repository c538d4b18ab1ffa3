package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tasktrac/apiserver/types"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	Mobile       string             `bson:"mobile"`
	PasswordHash string             `bson:"password_hash"`
	IsActive     bool               `bson:"is_active"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d userDoc) toUser() types.User {
	return types.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Mobile:       d.Mobile,
		PasswordHash: d.PasswordHash,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoUserStore is the document user adapter.
type MongoUserStore struct {
	coll *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{coll: db.Collection("users")}
}

func (s *MongoUserStore) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Name:         user.Name,
		Email:        user.Email,
		Mobile:       user.Mobile,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrNotCreated
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	if result.InsertedID == nil {
		return types.User{}, ErrNotCreated
	}
	return doc.toUser(), nil
}

func (s *MongoUserStore) GetOne(ctx context.Context, filter UserFilter) (types.User, error) {
	if filter.IsZero() {
		return types.User{}, ErrNotFound
	}

	query := bson.M{}
	if filter.ID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.ID)
		if err != nil {
			return types.User{}, ErrNotFound
		}
		query["_id"] = oid
	}
	if filter.Mobile != "" {
		query["mobile"] = filter.Mobile
	}
	if filter.Email != "" {
		query["email"] = filter.Email
	}

	var doc userDoc
	if err := s.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return doc.toUser(), nil
}
