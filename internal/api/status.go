package api

import (
	"errors"
	"net/http"

	"github.com/npezzotti/chat-relay/internal/database"
)

// status is a public route, like login: process liveness plus
// store/cache reachability.
func (s *AdminApp) status(w http.ResponseWriter, r *http.Request) {
	storeOK := s.db.Ping() == nil
	cacheOK := s.cache.Ping(r.Context()) == nil

	code := http.StatusOK
	state := "ok"
	if !storeOK || !cacheOK {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}

	s.writeJson(w, code, map[string]any{
		"status": state,
		"store":  storeOK,
		"cache":  cacheOK,
	})
}

func (s *AdminApp) info(w http.ResponseWriter, r *http.Request) {
	name, err := s.db.GetSetting("deployment_name")
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if name == "" {
		name = "chat-relay"
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"name":    name,
		"version": Version,
	})
}

// Version is stamped at build time via -ldflags.
var Version = "dev"
