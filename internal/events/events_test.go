package events

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatch(t *testing.T) {
	single, err := DecodeBatch([]byte(`{"name":"clerk/user.created","data":{"id":"user_1"}}`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, ClerkUserCreated, single[0].Name)

	batch, err := DecodeBatch([]byte(` [{"id":"a","name":"x","data":{}},{"id":"b","name":"y","data":{}}]`))
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = DecodeBatch([]byte(`  `))
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = DecodeBatch([]byte(`{"name":`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	evt := Event{Name: TaskAssigned}
	require.NoError(t, evt.Normalize(now))
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, now.UnixMilli(), evt.Timestamp)
	assert.JSONEq(t, `{}`, string(evt.Data))

	kept := Event{ID: "evt_1", Name: TaskAssigned, Timestamp: 42}
	require.NoError(t, kept.Normalize(now))
	assert.Equal(t, "evt_1", kept.ID)
	assert.Equal(t, int64(42), kept.Timestamp)

	assert.ErrorIs(t, (&Event{}).Normalize(now), ErrInvalidEvent)
}

func TestNewAndDecode(t *testing.T) {
	evt, err := New(TaskAssigned, map[string]string{"taskId": "t1", "origin": "http://app"})
	require.NoError(t, err)

	var data struct {
		TaskID string `json:"taskId"`
		Origin string `json:"origin"`
	}
	require.NoError(t, evt.Decode(&data))
	assert.Equal(t, "t1", data.TaskID)
	assert.Equal(t, "http://app", data.Origin)
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"id":      "evt_1",
			"name":    TaskAssigned,
			"data":    `{"taskId":"t1"}`,
			"ts":      "1700000000000",
			"attempt": "2",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1-0", msg.ID)
	assert.Equal(t, "evt_1", msg.Event.ID)
	assert.Equal(t, 2, msg.Attempt)
	assert.Equal(t, int64(1700000000000), msg.Event.Timestamp)

	_, err = ParseMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"id": "x"}})
	assert.Error(t, err)

	_, err = ParseMessage(redis.XMessage{ID: "3-0", Values: map[string]interface{}{
		"id": "x", "name": "y", "data": "{not json",
	}})
	assert.Error(t, err)

	defaulted, err := ParseMessage(redis.XMessage{ID: "4-0", Values: map[string]interface{}{"id": "x", "name": "y"}})
	require.NoError(t, err)
	assert.Equal(t, 1, defaulted.Attempt)
}

func TestSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"name":"clerk/user.created"}`)
	header := Sign("signkey", body, now)

	assert.NoError(t, VerifySignature("signkey", header, body, now.Add(time.Minute), 5*time.Minute))
	assert.ErrorIs(t, VerifySignature("other", header, body, now, 5*time.Minute), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("signkey", header, []byte(`{}`), now, 5*time.Minute), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("signkey", header, body, now.Add(10*time.Minute), 5*time.Minute), ErrExpiredSignature)
	assert.ErrorIs(t, VerifySignature("signkey", "", body, now, 5*time.Minute), ErrMissingSignature)
	assert.ErrorIs(t, VerifySignature("signkey", "t=abc&s=00", body, now, 5*time.Minute), ErrInvalidSignature)
}
