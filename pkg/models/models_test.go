package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateJSONUsesRecordNames(t *testing.T) {
	u := Update{StaffID: "a", Fields: Fields{
		FieldLateNumber: "OC",
		FieldHelpNeeded: true,
		FieldRoom:       "",
	}}
	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"staffId":"a","fields":{"lateNumber":"OC","helpNeeded":true,"room":""}}`, string(raw))

	var back Update
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, u, back)
}

func TestStaffRecordJSONIsCamelCase(t *testing.T) {
	raw, err := json.Marshal(StaffRecord{ID: "a", LateNumber: "3", PinHash: "hash"})
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(raw, &keys))
	for k := range keys {
		assert.NotContains(t, k, "_", "key %s", k)
	}
	assert.Contains(t, keys, "updatedAt")
	assert.NotContains(t, keys, "pinHash")
}
