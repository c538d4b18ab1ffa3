package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tasktrac/apiserver/config"
)

const defaultMongoTimeout = 10 * time.Second

// OpenMongo connects to MongoDB, verifies the connection, and ensures
// the indexes the relational migrations create: unique email and mobile
// on users, and the owner + start date index backing the default task
// listing.
func OpenMongo(ctx context.Context, cfg config.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	database := client.Database(cfg.Mongo.DBName)
	if err := ensureMongoIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, database, nil
}

func ensureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	_, err := database.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: unique},
	})
	if err != nil {
		return err
	}

	_, err = database.Collection("tasks").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_date", Value: -1}},
	})
	return err
}
