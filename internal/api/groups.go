package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

type groupView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups()
	if err != nil {
		s.log.Error("list groups", "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list groups")
		return
	}

	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupView{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt})
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": views})
}

type createGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "group name must not be empty")
		return
	}

	id, err := s.store.CreateGroup(name)
	if err != nil {
		if err == storage.ErrDefaultGroup {
			respondError(w, http.StatusConflict, ErrCodeConflict, "default group is reserved")
			return
		}
		s.log.Error("create group", "name", name, "error", err)
		respondError(w, http.StatusConflict, ErrCodeConflict, "group already exists")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": name})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid group id")
		return
	}

	switch err := s.store.DeleteGroup(id); err {
	case nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
	case storage.ErrNotFound:
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "group not found")
	case storage.ErrDefaultGroup:
		respondError(w, http.StatusConflict, ErrCodeConflict, "default group cannot be deleted")
	default:
		s.log.Error("delete group", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "delete failed")
	}
}
