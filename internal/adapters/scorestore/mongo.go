package scorestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/tapscore/internal/domain/types"
	"github.com/okian/tapscore/pkg/metrics"
)

const mongoIDField = "_id"

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithTimeout bounds every individual remote call.
func WithTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// MongoStore reads user score documents from a MongoDB collection.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

var _ Store = (*MongoStore)(nil)

// ConnectMongo connects to uri and binds the store to database.collection.
func ConnectMongo(ctx context.Context, uri, database, collection string, opts ...MongoOption) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrRemoteStore, err)
	}
	return NewMongoStore(client.Database(database).Collection(collection), opts...), nil
}

// NewMongoStore wraps an existing collection handle.
func NewMongoStore(coll *mongo.Collection, opts ...MongoOption) *MongoStore {
	s := &MongoStore{
		client:  coll.Database().Client(),
		coll:    coll,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// FindByUID runs the equivalent of where("uid", "==", uid).limit(1).
func (s *MongoStore) FindByUID(ctx context.Context, uid string) (types.UserRecord, bool, error) {
	const op = "find_by_uid"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	defer observeRemote(op, time.Now())

	var doc bson.M
	err := s.coll.FindOne(ctx, bson.D{{Key: UIDField, Value: uid}}).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return types.UserRecord{}, false, nil
	case err != nil:
		metrics.RecordRemoteError(op)
		return types.UserRecord{}, false, fmt.Errorf("%w: find uid %q: %w", ErrRemoteStore, uid, err)
	}
	return toRecord(doc), true, nil
}

// List streams every document of the collection.
func (s *MongoStore) List(ctx context.Context) ([]types.UserRecord, error) {
	const op = "list"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	defer observeRemote(op, time.Now())

	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		metrics.RecordRemoteError(op)
		return nil, fmt.Errorf("%w: list: %w", ErrRemoteStore, err)
	}
	defer cur.Close(ctx)

	recs := []types.UserRecord{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			metrics.RecordRemoteError(op)
			return nil, fmt.Errorf("%w: list: decode: %w", ErrRemoteStore, err)
		}
		recs = append(recs, toRecord(doc))
	}
	if err := cur.Err(); err != nil {
		metrics.RecordRemoteError(op)
		return nil, fmt.Errorf("%w: list: cursor: %w", ErrRemoteStore, err)
	}
	return recs, nil
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrRemoteStore, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// toRecord splits the Mongo _id from the document body and converts BSON
// container types into plain Go maps and slices so the record marshals as
// ordinary JSON.
func toRecord(doc bson.M) types.UserRecord {
	fields := make(map[string]any, len(doc))
	var id string
	for k, v := range doc {
		if k == mongoIDField {
			id = documentID(v)
			continue
		}
		fields[k] = normalize(v)
	}
	return types.UserRecord{DocumentID: id, Fields: fields}
}

func documentID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	default:
		return v
	}
}

func observeRemote(op string, start time.Time) {
	metrics.RecordRemoteQuery(op, float64(time.Since(start).Microseconds())/1000)
}
