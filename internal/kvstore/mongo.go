package kvstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const storeCollection = "kvstore"

type storedValue struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoStore keeps one document per key.
type MongoStore struct {
	// connection closer function
	Disconnect func()

	coll   *mongo.Collection
	logger *zap.Logger
}

func NewMongoStore(logger *zap.Logger, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		logger.Error("db connection failed", zap.String("uri", uri))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	closer := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("failed to disconnect the DB: " + err.Error())
		}
	}

	return &MongoStore{
		Disconnect: closer,
		coll:       client.Database(database).Collection(storeCollection),
		logger:     logger,
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var stored storedValue

	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.New("failed to find the stored value: " + err.Error())
	}

	return stored.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, value string) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		storedValue{Key: key, Value: value},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		s.logger.Debug("failed to store the value: "+err.Error(), zap.String("key", key))
		return errors.New("failed to store the value: " + err.Error())
	}

	return nil
}
