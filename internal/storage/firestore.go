package storage

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// FirestoreCollection stores sessions as documents named by session id.
type FirestoreCollection struct {
	client     *firestore.Client
	collection string
}

// DialFirestore creates a client for projectID.
func DialFirestore(ctx context.Context, projectID, collection string) (*FirestoreCollection, error) {
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreCollection{client: client, collection: collection}, nil
}

func (f *FirestoreCollection) sessions() *firestore.CollectionRef {
	return f.client.Collection(f.collection)
}

func (f *FirestoreCollection) Get(ctx context.Context, sessionID string) (*chat.Session, error) {
	snap, err := f.sessions().Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore get %s: %w", sessionID, err)
	}
	return decodeSnapshot(snap)
}

func (f *FirestoreCollection) FindLatestByUser(ctx context.Context, userEmail string) (*chat.Session, error) {
	iter := f.sessions().
		Where("userEmail", "==", userEmail).
		OrderBy("updatedAt", firestore.Desc).
		OrderBy("revision", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("firestore latest for user: %w", err)
	}
	return decodeSnapshot(snap)
}

func (f *FirestoreCollection) Upsert(ctx context.Context, session *chat.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if _, err := f.sessions().Doc(session.SessionID).Set(ctx, session); err != nil {
		return fmt.Errorf("firestore upsert %s: %w", session.SessionID, err)
	}
	return nil
}

func (f *FirestoreCollection) Delete(ctx context.Context, sessionID string) error {
	if _, err := f.sessions().Doc(sessionID).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("firestore delete %s: %w", sessionID, err)
	}
	return nil
}

func (f *FirestoreCollection) Close(context.Context) error {
	return f.client.Close()
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*chat.Session, error) {
	var session chat.Session
	if err := snap.DataTo(&session); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", chat.ErrInvalidDocument, snap.Ref.ID, err)
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return &session, nil
}
