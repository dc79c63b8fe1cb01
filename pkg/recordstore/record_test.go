package recordstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	record, err := decodeRecord(nil)
	require.NoError(t, err)
	assert.Nil(t, record)

	record, err = decodeRecord([]byte(`{"lat":44.1003,"lng":-70.2148,"timestamp":"2025-03-01T12:00:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 44.1003, record.Coordinate.Latitude)
	assert.Equal(t, -70.2148, record.Coordinate.Longitude)
	assert.Equal(t, 2025, record.UpdatedAt.Year())

	_, err = decodeRecord([]byte(`{"lat":44.1}`))
	assert.Error(t, err, "lng is required")

	_, err = decodeRecord([]byte(`{"lat":144.1,"lng":0}`))
	assert.Error(t, err, "latitude out of range")
}

func TestShuttleRecordWireFormat(t *testing.T) {
	payload, err := json.Marshal(testRecord(44.1003, -70.2148))
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":44.1003,"lng":-70.2148,"timestamp":"2025-03-01T12:00:00Z"}`, string(payload))
}
