package livepush

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewFrame(t *testing.T) {
	frame, err := NewFrame(FrameLiveStats, map[string]int{"active_rooms": 3})
	assert.NoError(t, err)
	assert.Equal(t, FrameLiveStats, frame.Type)
	assert.WithinDuration(t, time.Now().UTC(), frame.Timestamp, time.Second)

	var data map[string]int
	assert.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, 3, data["active_rooms"], "expected data to round-trip")
}

func TestNewFrameNoData(t *testing.T) {
	frame, err := NewFrame(FramePong, nil)
	assert.NoError(t, err)
	assert.Nil(t, frame.Data, "expected empty data to be omitted")
}

func TestFrameSerialization(t *testing.T) {
	frame, err := NewFrame(FramePong, PingData{Ts: 42})
	assert.NoError(t, err)

	raw, err := json.Marshal(frame)
	assert.NoError(t, err)

	var decoded Frame
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, FramePong, decoded.Type)

	var ping PingData
	assert.NoError(t, json.Unmarshal(decoded.Data, &ping))
	assert.Equal(t, int64(42), ping.Ts, "expected pong to echo the ping timestamp")
}

func TestFrameTypeForTopic(t *testing.T) {
	// pub/sub topics map one-to-one onto frame types
	for _, topic := range []string{"new_message", "room_update", "channel_update", "system_notification"} {
		assert.Equal(t, topic, frameTypeForTopic(topic))
	}
}
