package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/types"
)

func withSession(req *http.Request) *http.Request {
	session := &cache.Session{UserId: 1, Username: "admin", IsSuperuser: true,
		ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(context.WithValue(req.Context(), sessionKey, session))
}

func TestCreateRoom(t *testing.T) {
	expectedRoom := database.Room{
		Id:         1,
		Name:       "general",
		CreatedBy:  "admin",
		CreatedAt:  time.Now().UTC(),
		MaxServers: 3,
		IsActive:   true,
	}

	tcases := []struct {
		name         string
		body         any
		mockRoom     database.Room
		mockErr      error
		expectCreate bool
		expectedCode int
	}{
		{
			name:         "creates room",
			body:         CreateRoomRequest{Name: "general", MaxServers: 3},
			mockRoom:     expectedRoom,
			expectCreate: true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "conflict on duplicate name",
			body:         CreateRoomRequest{Name: "general", MaxServers: 3},
			mockErr:      database.ErrNameTaken,
			expectCreate: true,
			expectedCode: http.StatusConflict,
		},
		{
			name:         "invalid max_servers",
			body:         CreateRoomRequest{Name: "general", MaxServers: -1},
			mockErr:      database.ErrLimitInvalid,
			expectCreate: true,
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "empty name rejected",
			body:         CreateRoomRequest{Name: ""},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "invalid json",
			body:         "nope",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockRelayRepository{}
			mockCache := &cache.MockRelayCache{}
			defer mockRepo.AssertExpectations(t)
			defer mockCache.AssertExpectations(t)

			if tc.expectCreate {
				mockRepo.On("CreateRoom", mock.MatchedBy(func(p database.CreateRoomParams) bool {
					return p.CreatedBy == "admin"
				})).Return(tc.mockRoom, tc.mockErr).Once()
			}
			if tc.expectedCode == http.StatusCreated {
				mockCache.On("Publish", mock.Anything, cache.TopicRoomUpdate, mock.Anything).
					Return(nil).Once()
			}

			app := newTestApp(t, mockRepo, mockCache)

			var buf bytes.Buffer
			json.NewEncoder(&buf).Encode(tc.body)
			rr := httptest.NewRecorder()
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/rooms", &buf))

			app.createRoom(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")

			if tc.expectedCode == http.StatusCreated {
				var room types.Room
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
				assert.Equal(t, "general", room.Name)
				assert.Equal(t, 3, room.MaxServers)
			}
		})
	}
}

func TestDeleteRoomCascades(t *testing.T) {
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockRepo.AssertExpectations(t)
	defer mockCache.AssertExpectations(t)

	subs := []database.Subscription{
		{RoomId: 1, GuildId: "g1", ChannelId: "c1", IsActive: true},
	}
	mockRepo.On("ListRoomChannels", 1, true).Return(subs, nil).Once()
	mockRepo.On("DeleteRoom", 1).Return(nil).Once()

	// room key and every channel key get invalidated, then dashboards
	// hear about it
	mockCache.On("Publish", mock.Anything, cache.TopicInvalidate, mock.Anything).Return(nil).Twice()
	mockCache.On("Publish", mock.Anything, cache.TopicRoomUpdate, mock.Anything).Return(nil).Once()

	app := newTestApp(t, mockRepo, mockCache)

	rr := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodDelete, "/api/rooms/1", nil))
	req.SetPathValue("id", "1")

	app.deleteRoom(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRegisterChannelConflicts(t *testing.T) {
	tcases := []struct {
		name         string
		mockErr      error
		expectedCode int
	}{
		{name: "already bound", mockErr: database.ErrAlreadyBound, expectedCode: http.StatusConflict},
		{name: "room full", mockErr: database.ErrRoomFull, expectedCode: http.StatusConflict},
		{name: "room inactive", mockErr: database.ErrRoomInactive, expectedCode: http.StatusConflict},
		{name: "guild banned", mockErr: database.ErrGuildBanned, expectedCode: http.StatusForbidden},
		{name: "room missing", mockErr: database.ErrNotFound, expectedCode: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockRelayRepository{}
			mockCache := &cache.MockRelayCache{}
			defer mockRepo.AssertExpectations(t)

			mockRepo.On("RegisterChannel", mock.Anything).
				Return(database.Subscription{}, tc.mockErr).Once()

			app := newTestApp(t, mockRepo, mockCache)

			var buf bytes.Buffer
			json.NewEncoder(&buf).Encode(RegisterChannelRequest{
				GuildId: "g1", ChannelId: "c1", GuildName: "Guild", ChannelName: "general",
			})
			rr := httptest.NewRecorder()
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/rooms/1/channels", &buf))
			req.SetPathValue("id", "1")

			app.registerChannel(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")
		})
	}
}

func TestRegisterChannelPublishes(t *testing.T) {
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockRepo.AssertExpectations(t)
	defer mockCache.AssertExpectations(t)

	sub := database.Subscription{
		RoomId: 1, GuildId: "g1", ChannelId: "c1",
		GuildName: "Guild", ChannelName: "general", IsActive: true,
		RegisteredAt: time.Now().UTC(),
	}
	mockRepo.On("RegisterChannel", mock.Anything).Return(sub, nil).Once()
	mockCache.On("Publish", mock.Anything, cache.TopicInvalidate, mock.MatchedBy(func(v any) bool {
		inv, ok := v.(cache.Invalidation)
		return ok && inv.Kind == cache.InvalidateChannel && inv.GuildId == "g1" && inv.ChannelId == "c1"
	})).Return(nil).Once()
	mockCache.On("Publish", mock.Anything, cache.TopicChannelUpdate, mock.Anything).Return(nil).Once()

	app := newTestApp(t, mockRepo, mockCache)

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(RegisterChannelRequest{
		GuildId: "g1", ChannelId: "c1", GuildName: "Guild", ChannelName: "general",
	})
	rr := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/rooms/1/channels", &buf))
	req.SetPathValue("id", "1")

	app.registerChannel(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestGetRoomNotFound(t *testing.T) {
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoom", 42).Return(database.Room{}, database.ErrNotFound).Once()

	app := newTestApp(t, mockRepo, mockCache)

	rr := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodGet, "/api/rooms/42", nil))
	req.SetPathValue("id", "42")

	app.getRoom(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
