package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/npezzotti/chat-relay/internal/database"
)

func (s *AdminApp) analyticsLive(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analytics.Live(r.Context())
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, stats)
}

func (s *AdminApp) analyticsMessages(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	stats, err := s.analytics.Messages(days)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, stats)
}

func (s *AdminApp) analyticsRoomStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	stats, err := s.analytics.RoomStats(id, days)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"room_id":        stats.RoomId,
		"message_count":  stats.MessageCount,
		"unique_authors": stats.UniqueAuthors,
		"unique_guilds":  stats.UniqueGuilds,
		"delivered":      stats.Delivered,
		"failed":         stats.Failed,
	})
}

func (s *AdminApp) analyticsHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, s.analytics.Health(r.Context()))
}

func (s *AdminApp) analyticsTrends(w http.ResponseWriter, r *http.Request) {
	days := 30
	switch r.URL.Query().Get("period") {
	case "week":
		days = 7
	case "month", "":
		days = 30
	case "quarter":
		days = 90
	default:
		errResp := NewUnprocessableError("period must be week, month or quarter")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	stats, err := s.analytics.Trends(days)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, stats)
}

func (s *AdminApp) exportMessages(w http.ResponseWriter, r *http.Request) {
	var filter database.ExportFilter

	q := r.URL.Query()
	filter.RoomId, _ = strconv.Atoi(q.Get("room_id"))
	filter.GuildId = q.Get("guild_id")
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			errResp := NewUnprocessableError("since must be RFC3339")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		filter.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			errResp := NewUnprocessableError("until must be RFC3339")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		filter.Until = t
	}

	messages, err := s.analytics.Export(filter)
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
