package platform

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Open() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGateway) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGateway) BotUserID() string {
	args := m.Called()
	return args.String(0)
}
func (m *MockGateway) OnMessageCreate(handler MessageHandler) {
	m.Called(handler)
}
func (m *MockGateway) SendMessage(ctx context.Context, channelId, content string) (string, error) {
	args := m.Called(ctx, channelId, content)
	return args.String(0), args.Error(1)
}
func (m *MockGateway) FetchMessage(ctx context.Context, channelId, messageId string) (*Message, error) {
	args := m.Called(ctx, channelId, messageId)
	if msg, ok := args.Get(0).(*Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGateway) NotifyAuthor(ctx context.Context, userId, content string) error {
	args := m.Called(ctx, userId, content)
	return args.Error(0)
}
