package mongorepos

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/edusource/core"
)

// Open connects to mongo and pings the primary.
func Open(ctx context.Context, conf *core.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, conf.Database.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.MongoURI).SetTimeout(conf.Database.Timeout))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(coursesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "enrolledUsers", Value: 1}}},
		{Keys: bson.D{{Key: "specialization", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "creating course indexes")
	}
	_, err = db.Collection(enrollmentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "enrolledAt", Value: -1}},
	})
	return errors.Wrap(err, "creating enrollment indexes")
}
