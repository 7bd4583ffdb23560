package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
)

type BanGuildRequest struct {
	GuildId   string `json:"guild_id"`
	GuildName string `json:"guild_name"`
	Reason    string `json:"reason"`
}

func (s *AdminApp) listServers(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))

	guilds, err := s.db.ListGuilds(activeOnly)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]any, 0, len(guilds))
	for _, g := range guilds {
		resp = append(resp, guildResponse(g))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) getServer(w http.ResponseWriter, r *http.Request) {
	guild, err := s.db.GetGuild(r.PathValue("guild_id"))
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

	s.writeJson(w, http.StatusOK, guildResponse(guild))
}

func (s *AdminApp) listServerChannels(w http.ResponseWriter, r *http.Request) {
	subs, err := s.db.ListGuildChannels(r.PathValue("guild_id"))
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

func (s *AdminApp) serverStats(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	stats, err := s.db.QueryGuildStats(r.PathValue("guild_id"), days)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"guild_id":       stats.GuildId,
		"guild_name":     stats.GuildName,
		"message_count":  stats.MessageCount,
		"unique_authors": stats.UniqueAuthors,
		"rooms":          stats.Rooms,
	})
}

func (s *AdminApp) serverActivity(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))

	buckets, err := s.db.QueryGuildActivity(r.PathValue("guild_id"), hours)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		resp = append(resp, map[string]any{
			"hour":          b.Hour,
			"message_count": b.MessageCount,
		})
	}

	s.writeJson(w, http.StatusOK, resp)
}

// refreshCache publishes room and channel invalidations for every room
// and its active bindings, the bulk equivalent of the per-entity
// invalidations. The dropped keys are refilled on the next lookup.
func (s *AdminApp) refreshCache(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.db.ListRooms(false)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var refreshed int
	for _, room := range rooms {
		s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{
			Kind: cache.InvalidateRoom, RoomId: room.Id,
		})

		subs, err := s.db.ListRoomChannels(room.Id, true)
		if err != nil {
			s.log.Println("list room channels:", err)
			continue
		}

		for _, sub := range subs {
			s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{
				Kind:      cache.InvalidateChannel,
				GuildId:   sub.GuildId,
				ChannelId: sub.ChannelId,
			})
			refreshed++
		}
	}

	s.writeJson(w, http.StatusOK, map[string]any{"refreshed_channels": refreshed})
}

func (s *AdminApp) listBans(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	bans, err := s.db.ListBans(includeInactive)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]any, 0, len(bans))
	for _, ban := range bans {
		resp = append(resp, banResponse(ban))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) banGuild(w http.ResponseWriter, r *http.Request) {
	var req BanGuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.GuildId == "" {
		errResp := NewUnprocessableError("guild_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, _ := SessionFrom(r.Context())

	ban, err := s.db.BanGuild(database.BanGuildParams{
		GuildId:   req.GuildId,
		GuildName: req.GuildName,
		Reason:    req.Reason,
		BannedBy:  session.Username,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrAlreadyBound) {
			errResp = NewConflictError("guild is already banned")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := banResponse(ban)
	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{Kind: cache.InvalidateBan, GuildId: ban.GuildId})
	s.publish(r.Context(), cache.TopicSystemNotification, map[string]any{
		"event":    "guild_banned",
		"guild_id": ban.GuildId,
		"reason":   ban.Reason,
	})

	s.writeJson(w, http.StatusCreated, resp)
}

func (s *AdminApp) unbanGuild(w http.ResponseWriter, r *http.Request) {
	guildId := r.PathValue("guild_id")

	session, _ := SessionFrom(r.Context())

	ban, err := s.db.UnbanGuild(guildId, session.Username)
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

	s.publish(r.Context(), cache.TopicInvalidate, cache.Invalidation{Kind: cache.InvalidateBan, GuildId: guildId})
	s.publish(r.Context(), cache.TopicSystemNotification, map[string]any{
		"event":    "guild_unbanned",
		"guild_id": guildId,
	})

	s.writeJson(w, http.StatusOK, banResponse(ban))
}
