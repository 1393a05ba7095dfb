package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

func marshalDoc(t *testing.T, doc bson.M) bson.Raw {
	t.Helper()
	data, err := bson.Marshal(doc)
	require.NoError(t, err)
	return bson.Raw(data)
}

func TestDecodeMongoSessionDate(t *testing.T) {
	at := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	raw := marshalDoc(t, bson.M{
		"sessionId": "s1",
		"userEmail": "ana@example.com",
		"messages":  []bson.M{{"role": "user", "content": "Hola", "timestamp": "2025-03-01 10:00:00"}},
		"updatedAt": at,
		"revision":  int64(7),
	})

	got, err := decodeMongoSession(raw)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.Equal(t, int64(7), got.Revision)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, chat.RoleUser, got.Messages[0].Role)
}

func TestDecodeMongoSessionLegacyStringTimestamp(t *testing.T) {
	raw := marshalDoc(t, bson.M{
		"sessionId": "old",
		"userEmail": "ana@example.com",
		"messages": []bson.M{
			{"role": "user", "content": "Hola", "timestamp": "2024-11-02 09:30:00"},
			{"role": "assistant", "content": "¡Hola!", "timestamp": "2024-11-02 09:30:02"},
		},
		"updatedAt": "2024-11-02 09:30:02",
	})

	got, err := decodeMongoSession(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 2, 14, 30, 2, 0, time.UTC), got.UpdatedAt)
	assert.Zero(t, got.Revision)
	assert.Len(t, got.Messages, 2)
}

func TestDecodeMongoSessionRejectsBadTimestamp(t *testing.T) {
	_, err := decodeMongoSession(marshalDoc(t, bson.M{"sessionId": "s1", "updatedAt": "ayer"}))
	assert.ErrorIs(t, err, chat.ErrInvalidDocument)

	_, err = decodeMongoSession(marshalDoc(t, bson.M{"sessionId": "s1", "updatedAt": true}))
	assert.ErrorIs(t, err, chat.ErrInvalidDocument)
}
