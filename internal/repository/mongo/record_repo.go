// internal/repository/mongo/record_repo.go
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const recordCollectionName = "records"

// recordDocument stores one record's serialized text under its storage key.
type recordDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// RecordBackend implements storage.Backend on a MongoDB collection.
type RecordBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewRecordBackend creates a record backend on db. The backend owns client and
// disconnects it on Close.
func NewRecordBackend(client *mongo.Client, db *mongo.Database) *RecordBackend {
	return &RecordBackend{
		client:     client,
		collection: db.Collection(recordCollectionName),
	}
}

func (r *RecordBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var doc recordDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(doc.Value), true, nil
}

func (r *RecordBackend) Save(ctx context.Context, key string, value []byte) error {
	doc := recordDocument{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes every listed key in a single DeleteMany.
func (r *RecordBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	return err
}

func (r *RecordBackend) Close() error {
	if r.client == nil {
		return nil
	}
	return DisconnectDB(r.client)
}
