package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFlattensTypeTag(t *testing.T) {
	data, err := Encode(Position{Lat: 13.05, Lon: 80.2824, Alt: 50, RelativeAlt: 50, Heading: 90, Speed: 8.5})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "position", m["type"])
	assert.Equal(t, 13.05, m["lat"])
	assert.Equal(t, 50.0, m["relativeAlt"])
	assert.Len(t, m, 7)
}

func TestEncodeStatusText(t *testing.T) {
	data, err := Encode(StatusText{Severity: 6, Text: "Landing"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status_text","severity":6,"text":"Landing"}`, string(data))
}

func TestEncodeKeepsMarkupLiteral(t *testing.T) {
	data, err := Encode(StatusText{Severity: 6, Text: "Landing <now> & hold"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"status_text","severity":6,"text":"Landing <now> & hold"}`, string(data))

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, StatusText{Severity: 6, Text: "Landing <now> & hold"}, ev)
}

func TestDecodeDispatchesOnType(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"heartbeat","mode":"AUTO","armed":true,"systemStatus":4}`))
	require.NoError(t, err)
	assert.Equal(t, Heartbeat{Mode: "AUTO", Armed: true, SystemStatus: 4}, ev)

	ev, err = Decode([]byte(`{"type":"flight_time","seconds":42}`))
	require.NoError(t, err)
	assert.Equal(t, FlightTime{Seconds: 42}, ev)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"camera"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
