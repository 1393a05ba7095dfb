package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// MongoCollection stores one document per session in a MongoDB collection.
type MongoCollection struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// DialMongo connects, verifies the server with a ping and ensures the indexes
// backing id lookups and per-user recency queries.
func DialMongo(ctx context.Context, uri, database, collection string) (*MongoCollection, error) {
	if uri == "" {
		return nil, errors.New("mongodb uri is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "userEmail", Value: 1},
				{Key: "updatedAt", Value: -1},
				{Key: "revision", Value: -1},
			},
		},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongodb indexes: %w", err)
	}

	return &MongoCollection{client: client, coll: coll}, nil
}

func (m *MongoCollection) Get(ctx context.Context, sessionID string) (*chat.Session, error) {
	return m.findOne(ctx, bson.M{"sessionId": sessionID})
}

func (m *MongoCollection) FindLatestByUser(ctx context.Context, userEmail string) (*chat.Session, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "updatedAt", Value: -1},
		{Key: "revision", Value: -1},
	})
	return m.findOne(ctx, bson.M{"userEmail": userEmail}, opts)
}

func (m *MongoCollection) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*chat.Session, error) {
	raw, err := m.coll.FindOne(ctx, filter, opts...).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return decodeMongoSession(raw)
}

// legacyLocation is the zone of string timestamps written by the previous
// deployment. Bogotá has no daylight saving time.
var legacyLocation = time.FixedZone("America/Bogota", -5*60*60)

// mongoSession mirrors chat.Session but accepts updatedAt either as a BSON
// date or as a "2006-01-02 15:04:05" string in legacyLocation.
type mongoSession struct {
	SessionID string        `bson:"sessionId"`
	UserEmail string        `bson:"userEmail,omitempty"`
	Messages  []chat.Turn   `bson:"messages"`
	UpdatedAt bson.RawValue `bson:"updatedAt"`
	Revision  int64         `bson:"revision"`
}

func decodeMongoSession(raw bson.Raw) (*chat.Session, error) {
	var doc mongoSession
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", chat.ErrInvalidDocument, err)
	}

	session := &chat.Session{
		SessionID: doc.SessionID,
		UserEmail: doc.UserEmail,
		Messages:  doc.Messages,
		Revision:  doc.Revision,
	}

	switch doc.UpdatedAt.Type {
	case bson.TypeDateTime:
		session.UpdatedAt = doc.UpdatedAt.Time().UTC()
	case bson.TypeString:
		t, err := time.ParseInLocation(chat.TimestampLayout, doc.UpdatedAt.StringValue(), legacyLocation)
		if err != nil {
			return nil, fmt.Errorf("%w: session %s updatedAt: %v", chat.ErrInvalidDocument, doc.SessionID, err)
		}
		session.UpdatedAt = t.UTC()
	case 0, bson.TypeNull:
	default:
		return nil, fmt.Errorf("%w: session %s updatedAt has BSON type %s", chat.ErrInvalidDocument, doc.SessionID, doc.UpdatedAt.Type)
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *MongoCollection) Upsert(ctx context.Context, session *chat.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	set := bson.M{
		"sessionId": session.SessionID,
		"messages":  session.Messages,
		"updatedAt": session.UpdatedAt,
		"revision":  session.Revision,
	}
	if session.UserEmail != "" {
		set["userEmail"] = session.UserEmail
	}

	_, err := m.coll.UpdateOne(ctx,
		bson.M{"sessionId": session.SessionID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb upsert %s: %w", session.SessionID, err)
	}
	return nil
}

func (m *MongoCollection) Delete(ctx context.Context, sessionID string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"sessionId": sessionID}); err != nil {
		return fmt.Errorf("mongodb delete %s: %w", sessionID, err)
	}
	return nil
}

func (m *MongoCollection) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
