// Package mongostore implements docstore.Store on MongoDB. Server
// timestamps are filled by $currentDate so the mongod clock, not the
// caller's, orders documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"opsdash/docstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", docstore.ErrUnavailable, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", docstore.ErrUnavailable, err)
	}

	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// collectionName maps "adminChats/global/messages" to
// "adminChats.global.messages".
func collectionName(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
}

func (s *Store) coll(path string) *mongo.Collection {
	return s.db.Collection(collectionName(path))
}

// splitFields separates plain values from ServerTimestamp markers.
func splitFields(fields docstore.Fields) (bson.M, bson.M) {
	set := bson.M{}
	current := bson.M{}
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			current[k] = bson.M{"$type": "date"}
			continue
		}
		set[k] = v
	}
	return set, current
}

func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func (s *Store) Append(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	set, current := splitFields(fields)

	update := bson.M{}
	if len(set) > 0 {
		update["$setOnInsert"] = set
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	if len(update) == 0 {
		update["$setOnInsert"] = bson.M{}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var raw bson.M
	err := s.coll(collection).FindOneAndUpdate(ctx, bson.M{"_id": primitive.NewObjectID()}, update, opts).Decode(&raw)
	if err != nil {
		return docstore.Document{}, classify(ctx, err)
	}
	return toDocument(raw), nil
}

// Merge updates the record matched by idFilter, so records keyed by an
// ObjectID elsewhere are merged into rather than shadowed. A new record is
// only ever created under the plain string id.
func (s *Store) Merge(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	set, current := splitFields(fields)

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	if len(update) == 0 {
		update["$setOnInsert"] = bson.M{}
	}

	coll := s.coll(collection)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		opts.SetUpsert(true)
	}

	var raw bson.M
	err := coll.FindOneAndUpdate(ctx, idFilter(id), update, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts.SetUpsert(true)).Decode(&raw)
	}
	if err != nil {
		return docstore.Document{}, classify(ctx, err)
	}
	return toDocument(raw), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var raw bson.M
	err := s.coll(collection).FindOne(ctx, idFilter(id)).Decode(&raw)
	if err != nil {
		return docstore.Document{}, classify(ctx, err)
	}
	return toDocument(raw), nil
}

func queryFilter(q docstore.Query) bson.M {
	if q.After == nil || q.OrderBy == "" {
		return bson.M{}
	}
	return bson.M{q.OrderBy: bson.M{"$gt": *q.After}}
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.coll(collection).Find(ctx, queryFilter(q), opts)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, classify(ctx, err)
	}

	docs := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, toDocument(raw))
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int64, error) {
	opts := options.Count()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	n, err := s.coll(collection).CountDocuments(ctx, queryFilter(q), opts)
	if err != nil {
		return 0, classify(ctx, err)
	}
	return n, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return err
	}
	log.Println("Disconnected from MongoDB")
	return nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return docstore.ErrNotFound
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
}

func toDocument(raw bson.M) docstore.Document {
	doc := docstore.Document{Fields: docstore.Fields{}}
	for k, v := range raw {
		if k == "_id" {
			switch id := v.(type) {
			case primitive.ObjectID:
				doc.ID = id.Hex()
			case string:
				doc.ID = id
			default:
				doc.ID = fmt.Sprint(id)
			}
			continue
		}
		doc.Fields[k] = fromBSON(v)
	}
	return doc
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
