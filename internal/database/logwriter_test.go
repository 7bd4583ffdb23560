package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/testutil"
)

func TestLogWriterAppendsAsync(t *testing.T) {
	mockRepo := &MockRelayRepository{}
	defer mockRepo.AssertExpectations(t)

	entry := MessageLogEntry{
		RoomId:        1,
		AuthorDisplay: "alice",
		Content:       "hi",
		Timestamp:     time.Now().UTC(),
	}
	mockRepo.On("AppendMessageLog", entry).Return(int64(1), nil).Once()

	w := NewLogWriter(testutil.TestLogger(t), mockRepo)
	w.Run()

	assert.True(t, w.Append(entry), "expected entry to be queued")

	// Stop flushes the queue before returning
	w.Stop()
}

func TestLogWriterSurvivesStoreErrors(t *testing.T) {
	mockRepo := &MockRelayRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("AppendMessageLog", mock.Anything).Return(int64(0), assert.AnError).Twice()

	w := NewLogWriter(testutil.TestLogger(t), mockRepo)
	w.Run()

	assert.True(t, w.Append(MessageLogEntry{RoomId: 1}))
	assert.True(t, w.Append(MessageLogEntry{RoomId: 2}))

	w.Stop()
}
