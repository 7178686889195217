package feed

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/ionm-board/pkg/models"
)

func TestHandlersDispatch(t *testing.T) {
	var got []string
	h := Handlers{
		OnInsert: func(r models.StaffRecord) { got = append(got, "insert:"+r.ID) },
		OnDelete: func(r models.StaffRecord) { got = append(got, "delete:"+r.ID) },
	}

	h.Dispatch(models.ChangeEvent{Type: models.ChangeInsert, New: &models.StaffRecord{ID: "a"}})
	h.Dispatch(models.ChangeEvent{Type: models.ChangeUpdate, New: &models.StaffRecord{ID: "a"}})
	h.Dispatch(models.ChangeEvent{Type: models.ChangeDelete, Old: &models.StaffRecord{ID: "a"}})
	h.Dispatch(models.ChangeEvent{Type: models.ChangeDelete})

	assert.Equal(t, []string{"insert:a", "delete:a"}, got)
}

func TestHub(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var a, b int
	subA, err := hub.Subscribe(Handlers{OnUpdate: func(models.StaffRecord) { a++ }})
	require.NoError(t, err)
	_, err = hub.Subscribe(Handlers{OnUpdate: func(models.StaffRecord) { b++ }})
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Len())

	ev := models.ChangeEvent{Type: models.ChangeUpdate, New: &models.StaffRecord{ID: "x"}}
	require.NoError(t, hub.Publish(ctx, ev))

	require.NoError(t, subA.Unsubscribe())
	require.NoError(t, subA.Unsubscribe())
	assert.Equal(t, 1, hub.Len())

	require.NoError(t, hub.Publish(ctx, ev))
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Len())
}

func TestDecodeEvent(t *testing.T) {
	payload, err := json.Marshal(models.ChangeEvent{
		Type: models.ChangeUpdate,
		New:  &models.StaffRecord{ID: "a", Name: "Ann", LateNumber: "OC", PinHash: "secret"},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "secret")

	ev, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeUpdate, ev.Type)
	assert.Equal(t, "OC", ev.New.LateNumber)

	bad := []string{
		`{`,
		`{"eventType":"UPSERT","new":{"id":"a"}}`,
		`{"eventType":"INSERT"}`,
		`{"eventType":"DELETE","new":{"id":"a"}}`,
	}
	for _, in := range bad {
		_, err := DecodeEvent([]byte(in))
		assert.Error(t, err, in)
	}
}
