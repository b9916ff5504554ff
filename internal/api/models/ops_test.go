package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/api/models"
)

func TestTimestamp_JSON(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	ts := models.Timestamp(time.Date(2026, 7, 14, 17, 0, 0, 123, berlin))

	data, err := json.Marshal(models.Health{Status: models.HealthStatusOK, Time: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK","time":"2026-07-14T15:00:00Z"}`, string(data))

	var back models.Health
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Time.Time().Equal(time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC)))
}

func TestTimestamp_UnmarshalNullAndGarbage(t *testing.T) {
	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.Time().IsZero())

	assert.Error(t, json.Unmarshal([]byte(`1700000000`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
