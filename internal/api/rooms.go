package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
)

type CreateRoomRequest struct {
	Name       string `json:"name"`
	MaxServers int    `json:"max_servers"`
}

type UpdateRoomRequest struct {
	Name       *string `json:"name"`
	MaxServers *int    `json:"max_servers"`
	IsActive   *bool   `json:"is_active"`
}

type UpdatePermissionsRequest struct {
	AllowURLs           *bool `json:"allow_urls"`
	AllowFiles          *bool `json:"allow_files"`
	AllowMentions       *bool `json:"allow_mentions"`
	AllowEmojis         *bool `json:"allow_emojis"`
	EnableBadWordFilter *bool `json:"enable_bad_word_filter"`
	MaxMessageLength    *int  `json:"max_message_length"`
	RateLimitSeconds    *int  `json:"rate_limit_seconds"`
}

type RegisterChannelRequest struct {
	GuildId     string `json:"guild_id"`
	ChannelId   string `json:"channel_id"`
	GuildName   string `json:"guild_name"`
	ChannelName string `json:"channel_name"`
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}

func roomNameValid(name string) bool {
	n := len([]rune(name))
	return n >= 1 && n <= 50
}

func (s *AdminApp) listRooms(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	rooms, err := s.db.ListRooms(includeInactive)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]any, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, roomResponse(room))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !roomNameValid(req.Name) {
		errResp := NewUnprocessableError("room name must be 1-50 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.MaxServers == 0 {
		req.MaxServers = 50
	}

	session, _ := SessionFrom(r.Context())

	room, err := s.db.CreateRoom(database.CreateRoomParams{
		Name:       req.Name,
		CreatedBy:  session.Username,
		MaxServers: req.MaxServers,
	})
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, database.ErrNameTaken):
			errResp = NewConflictError("room name already taken")
		case errors.Is(err, database.ErrLimitInvalid):
			errResp = NewUnprocessableError("max_servers must be positive")
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := roomResponse(room)
	s.publish(r.Context(), cache.TopicRoomUpdate, resp)

	s.writeJson(w, http.StatusCreated, resp)
}

func (s *AdminApp) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoom(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomResponse(room))
}

func (s *AdminApp) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Name != nil && !roomNameValid(*req.Name) {
		errResp := NewUnprocessableError("room name must be 1-50 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.UpdateRoom(id, database.UpdateRoomParams{
		Name:       req.Name,
		MaxServers: req.MaxServers,
		IsActive:   req.IsActive,
	})
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, database.ErrNotFound):
			errResp = NewNotFoundError()
		case errors.Is(err, database.ErrNameTaken):
			errResp = NewConflictError("room name already taken")
		case errors.Is(err, database.ErrLimitInvalid):
			errResp = NewUnprocessableError("max_servers must be positive")
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := roomResponse(room)
	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{Kind: cache.InvalidateRoom, RoomId: id})
	s.publish(r.Context(), cache.TopicRoomUpdate, resp)

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// channel keys must be dropped too, so resolve the bindings before
	// the delete deactivates them
	subs, err := s.db.ListRoomChannels(id, true)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteRoom(id); err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{Kind: cache.InvalidateRoom, RoomId: id})
	for _, sub := range subs {
		s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{
			Kind:      cache.InvalidateChannel,
			GuildId:   sub.GuildId,
			ChannelId: sub.ChannelId,
		})
	}
	s.publish(r.Context(), cache.TopicRoomUpdate, map[string]any{"id": id, "deleted": true})

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *AdminApp) getPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	perms, err := s.db.GetPermissions(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, permissionsResponse(perms))
}

func (s *AdminApp) updatePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, _ := SessionFrom(r.Context())

	perms, err := s.db.UpdatePermissions(id, database.UpdatePermissionsParams{
		AllowURLs:           req.AllowURLs,
		AllowFiles:          req.AllowFiles,
		AllowMentions:       req.AllowMentions,
		AllowEmojis:         req.AllowEmojis,
		EnableBadWordFilter: req.EnableBadWordFilter,
		MaxMessageLength:    req.MaxMessageLength,
		RateLimitSeconds:    req.RateLimitSeconds,
		UpdatedBy:           session.Username,
	})
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, database.ErrNotFound):
			errResp = NewNotFoundError()
		case errors.Is(err, database.ErrLimitInvalid):
			errResp = NewUnprocessableError("permission value out of range")
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := permissionsResponse(perms)
	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{Kind: cache.InvalidatePermissions, RoomId: id})
	s.publish(r.Context(), cache.TopicRoomUpdate, resp)

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) listRoomChannels(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	subs, err := s.db.ListRoomChannels(id, false)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]any, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, subscriptionResponse(sub))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) registerChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RegisterChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.GuildId == "" || req.ChannelId == "" {
		errResp := NewUnprocessableError("guild_id and channel_id are required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, _ := SessionFrom(r.Context())

	sub, err := s.db.RegisterChannel(database.RegisterChannelParams{
		RoomId:       id,
		GuildId:      req.GuildId,
		ChannelId:    req.ChannelId,
		GuildName:    req.GuildName,
		ChannelName:  req.ChannelName,
		RegisteredBy: session.Username,
	})
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, database.ErrNotFound):
			errResp = NewNotFoundError()
		case errors.Is(err, database.ErrAlreadyBound):
			errResp = NewConflictError("channel already bound to a room")
		case errors.Is(err, database.ErrRoomFull):
			errResp = NewConflictError("room is at max_servers capacity")
		case errors.Is(err, database.ErrRoomInactive):
			errResp = NewConflictError("room is inactive")
		case errors.Is(err, database.ErrGuildBanned):
			errResp = NewForbiddenError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := subscriptionResponse(sub)
	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{
		Kind:      cache.InvalidateChannel,
		GuildId:   sub.GuildId,
		ChannelId: sub.ChannelId,
	})
	s.publish(r.Context(), cache.TopicChannelUpdate, resp)

	s.writeJson(w, http.StatusCreated, resp)
}

func (s *AdminApp) unregisterChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	guildId := r.PathValue("guild_id")
	channelId := r.PathValue("channel_id")

	if err := s.db.UnregisterChannel(id, guildId, channelId); err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{
		Kind:      cache.InvalidateChannel,
		GuildId:   guildId,
		ChannelId: channelId,
	})
	s.publish(r.Context(), cache.TopicChannelUpdate, map[string]any{
		"room_id":    id,
		"guild_id":   guildId,
		"channel_id": channelId,
		"is_active":  false,
	})

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *AdminApp) listRoomMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	messages, err := s.db.ListRoomMessages(id, limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]any, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, messageResponse(msg))
	}

	s.writeJson(w, http.StatusOK, resp)
}
