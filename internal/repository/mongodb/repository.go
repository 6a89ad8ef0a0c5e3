// Package mongodb is the remote document store backed by MongoDB. Batches
// commit inside a multi-document transaction and subscriptions ride on
// change streams, so the deployment must be a replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/store"
)

// MongoDBRepository implements store.Store on MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ store.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects to uri. The initial ping is best effort: the
// pipeline must start while the field link is down, so an unreachable server
// is logged and the repository is still returned.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Warn("mongodb not reachable at startup", zap.Error(err))
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// Ping implements store.Pinger.
func (r *MongoDBRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return classify(fmt.Errorf("ping mongodb: %w", err))
	}
	return nil
}

// Commit implements store.Committer.
func (r *MongoDBRepository) Commit(ctx context.Context, batch *store.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return store.NewRejected(store.ErrEmptyBatch)
	}
	writes, err := translateBatch(batch)
	if err != nil {
		return store.NewRejected(err)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return classify(fmt.Errorf("start session: %w", err))
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, w := range writes {
			if err := r.execute(sc, w); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return classify(err)
	}

	r.logger.Debug("batch committed", zap.Int("intents", len(writes)))
	return nil
}

func (r *MongoDBRepository) execute(ctx context.Context, w write) error {
	coll := r.db.Collection(w.collection)
	switch w.kind {
	case store.IntentCreate:
		_, err := coll.UpdateOne(ctx, w.filter, w.update, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("create %s/%s: %w", w.collection, w.id, err)
		}
	case store.IntentUpdate, store.IntentIncrement:
		res, err := coll.UpdateOne(ctx, w.filter, w.update)
		if err != nil {
			return fmt.Errorf("%s %s/%s: %w", w.kind, w.collection, w.id, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%s %s/%s: %w", w.kind, w.collection, w.id, w.missErr)
		}
	case store.IntentDerive:
		fields, err := w.derive(r.lookup(ctx))
		if err != nil {
			return fmt.Errorf("derive %s/%s: %w", w.collection, w.id, err)
		}
		if len(fields) == 0 {
			return nil
		}
		res, err := coll.UpdateOne(ctx, w.filter, derivedUpdate(fields))
		if err != nil {
			return fmt.Errorf("derive %s/%s: %w", w.collection, w.id, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("derive %s/%s: %w", w.collection, w.id, w.missErr)
		}
	case store.IntentClaim:
		marker := append(w.update.(bson.D), bson.E{Key: store.FieldCreatedAt, Value: time.Now().UTC()})
		if _, err := coll.InsertOne(ctx, marker); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("operation %s: %w", w.id, store.ErrAlreadyApplied)
			}
			return fmt.Errorf("claim %s: %w", w.id, err)
		}
	case store.IntentDelete:
		res, err := coll.DeleteOne(ctx, w.filter)
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", w.collection, w.id, err)
		}
		return deleteOutcome(w, res.DeletedCount, func() (bool, error) {
			n, err := coll.CountDocuments(ctx, idFilter(w.id, nil))
			return n > 0, err
		})
	}
	return nil
}

// lookup reads inside the running transaction, so derivations see the
// batch's own earlier writes.
func (r *MongoDBRepository) lookup(ctx context.Context) store.Lookup {
	return func(collection, id string) (store.Document, error) {
		var doc store.Document
		err := r.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// Get implements store.Reader.
func (r *MongoDBRepository) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var doc store.Document
	err := r.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Find implements store.Reader. Results are ordered by id.
func (r *MongoDBRepository) Find(ctx context.Context, query store.Query) ([]store.Document, error) {
	cursor, err := r.db.Collection(query.Collection).Find(ctx, queryFilter(query), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", query.Collection, err)
	}
	docs := []store.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read %s: %w", query.Collection, err)
	}
	return docs, nil
}

// Subscribe implements store.Subscriber with a change stream on the
// collection. Each change triggers a re-query so every snapshot is the full
// result set.
func (r *MongoDBRepository) Subscribe(ctx context.Context, query store.Query) (<-chan store.Snapshot, error) {
	stream, err := r.db.Collection(query.Collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, classify(fmt.Errorf("watch %s: %w", query.Collection, err))
	}
	initial, err := r.Find(ctx, query)
	if err != nil {
		_ = stream.Close(context.Background())
		return nil, classify(err)
	}

	out := make(chan store.Snapshot, 1)
	out <- store.Snapshot{Query: query, Documents: initial, At: time.Now().UTC()}

	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			docs, err := r.Find(ctx, query)
			if err != nil {
				r.logger.Warn("subscription re-query failed", zap.String("collection", query.Collection), zap.Error(err))
				return
			}
			publish(out, store.Snapshot{Query: query, Documents: docs, At: time.Now().UTC()})
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			r.logger.Warn("change stream ended", zap.String("collection", query.Collection), zap.Error(err))
		}
	}()
	return out, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// publish replaces any unread snapshot with snap.
func publish(out chan store.Snapshot, snap store.Snapshot) {
	for {
		select {
		case out <- snap:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

// classify maps driver errors onto the commit failure kinds. Anything that
// suggests the server was never reached is Unavailable; the rest is Rejected.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var commitErr *store.CommitError
	if errors.As(err, &commitErr) {
		return err
	}
	if unreachable(err) {
		return store.NewUnavailable(err)
	}
	return store.NewRejected(err)
}

func unreachable(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	var selErr topology.ServerSelectionError
	if errors.As(err, &selErr) {
		return true
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError") {
		return true
	}
	return false
}
