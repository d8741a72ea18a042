package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// settingKeys whitelists the stored settings the API may touch.
// Updated values take effect on the next start.
var settingKeys = map[string]bool{
	"marathon_url": true,
}

type settingView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !settingKeys[key] {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "unknown setting")
		return
	}

	respondJSON(w, http.StatusOK, settingView{Key: key, Value: s.store.GetSetting(key, "")})
}

type updateSettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !settingKeys[key] {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "unknown setting")
		return
	}

	var req updateSettingRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	value := strings.TrimSpace(req.Value)
	if value == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "setting value must not be empty")
		return
	}

	if err := s.store.SetSetting(key, value); err != nil {
		s.log.Error("update setting", "key", key, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "update failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
