// Package api exposes the manual trigger surface: single-account
// refresh, promo activation, and account/group management.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roman-kripton/pw-twin-tools/internal/monitor"
	"github.com/roman-kripton/pw-twin-tools/internal/scraper"
	"github.com/roman-kripton/pw-twin-tools/internal/session"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

// SessionStore is the slice of the session store the API needs
type SessionStore interface {
	Exists(username string) bool
	Delete(username string) error
}

// Server is the manual-trigger HTTP server
type Server struct {
	store    *storage.Storage
	sessions SessionStore
	monitor  *monitor.Monitor
	log      *slog.Logger

	server *http.Server
}

func NewServer(store *storage.Storage, sessions SessionStore, mon *monitor.Monitor, log *slog.Logger) *Server {
	return &Server{
		store:    store,
		sessions: sessions,
		monitor:  mon,
		log:      log,
	}
}

// Start runs the server until the context is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{username}/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{username}/group", s.handleSetGroup).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{username}/characters", s.handleCharacters).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{username}", s.handleUpdateAccount).Methods(http.MethodPatch)
	api.HandleFunc("/accounts/{username}", s.handleDeleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}", s.handleDeleteGroup).Methods(http.MethodDelete)
	api.HandleFunc("/promo", s.handleActivatePromo).Methods(http.MethodPost)
	api.HandleFunc("/settings/{key}", s.handleGetSetting).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", s.handleUpdateSetting).Methods(http.MethodPut)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		// Refresh and promo handlers drive full browser sessions
		WriteTimeout: 10 * time.Minute,
	}

	s.log.Info("starting api server", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	return s.server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"busy":   s.monitor.Busy(),
	})
}

// --- Accounts ---

type taskView struct {
	Name      string    `json:"name"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}

type characterView struct {
	Server string `json:"server"`
	Name   string `json:"name"`
	Class  string `json:"class,omitempty"`
	Level  int    `json:"level,omitempty"`
}

type accountView struct {
	Username       string          `json:"username"`
	Alias          string          `json:"alias,omitempty"`
	Group          string          `json:"group"`
	Server         string          `json:"server,omitempty"`
	MdmCoins       string          `json:"mdm_coins"`
	UsePromo       bool            `json:"use_promo"`
	TransferToGame bool            `json:"transfer_to_game"`
	LastSuccess    *time.Time      `json:"last_success,omitempty"`
	Tasks          []taskView      `json:"tasks,omitempty"`
	Characters     []characterView `json:"characters,omitempty"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		s.log.Error("list accounts", "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list accounts")
		return
	}

	grouped := make(map[string][]accountView)
	for i := range accounts {
		a := &accounts[i]
		view := accountView{
			Username:       a.Username,
			Alias:          a.Alias,
			Group:          a.GroupName,
			Server:         a.Server,
			MdmCoins:       a.MdmCoins,
			UsePromo:       a.UsePromo,
			TransferToGame: a.TransferToGame,
			LastSuccess:    a.LastSuccess,
		}

		tasks, err := s.store.AccountTasks(a.Username)
		if err == nil {
			for _, t := range tasks {
				view.Tasks = append(view.Tasks, taskView{
					Name: t.Name, Current: t.Current, Total: t.Total,
					Percent: t.Percent, Timestamp: t.Timestamp,
				})
			}
		}

		chars, err := s.store.AccountCharacters(a.Username)
		if err == nil {
			for _, c := range chars {
				view.Characters = append(view.Characters, characterView{
					Server: c.Server, Name: c.Name, Class: c.Class, Level: c.Level,
				})
			}
		}

		grouped[a.GroupName] = append(grouped[a.GroupName], view)
	}

	respondJSON(w, http.StatusOK, grouped)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if s.monitor.Busy() {
		respondError(w, http.StatusLocked, ErrCodeBusy, "another check is already running")
		return
	}
	if !s.sessions.Exists(username) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "session bundle not found")
		return
	}

	res, err := s.monitor.CheckAccount(r.Context(), username)
	switch {
	case err == monitor.ErrBusy:
		respondError(w, http.StatusLocked, ErrCodeBusy, "another check is already running")
	case err != nil:
		s.log.Error("manual refresh", "username", username, "error", err)
		respondError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]any{"status": "success", "data": refreshView(res)})
	}
}

func refreshView(res *scraper.Result) accountView {
	view := accountView{
		Username: res.Username,
		MdmCoins: res.MdmCoins,
	}
	for _, t := range res.Tasks {
		view.Tasks = append(view.Tasks, taskView{
			Name: t.Name, Current: t.Current, Total: t.Total,
			Percent: t.Percent, Timestamp: t.Timestamp,
		})
	}
	for _, c := range res.Characters {
		view.Characters = append(view.Characters, characterView{
			Server: c.Server, Name: c.Name, Class: c.Class, Level: c.Level,
		})
	}
	return view
}

type updateAccountRequest struct {
	Alias          *string `json:"alias"`
	Server         *string `json:"server"`
	UsePromo       *bool   `json:"use_promo"`
	TransferToGame *bool   `json:"transfer_to_game"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req updateAccountRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	updates := map[string]any{}
	if req.Alias != nil {
		updates["alias"] = *req.Alias
	}
	if req.Server != nil {
		updates["server"] = *req.Server
	}
	if req.UsePromo != nil {
		updates["use_promo"] = *req.UsePromo
	}
	if req.TransferToGame != nil {
		updates["transfer_to_game"] = *req.TransferToGame
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "no updatable fields in request")
		return
	}

	for field, value := range updates {
		if err := s.store.UpdateAccountSetting(username, field, value); err != nil {
			if err == storage.ErrNotFound {
				respondError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
				return
			}
			s.log.Error("update account", "username", username, "field", field, "error", err)
			respondError(w, http.StatusInternalServerError, ErrCodeInternal, "update failed")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := s.store.DeleteAccount(username); err != nil {
		if err == storage.ErrNotFound {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		s.log.Error("delete account", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "delete failed")
		return
	}

	// Drop the session bundle too; a missing bundle is fine
	if err := s.sessions.Delete(username); err != nil && err != session.ErrNoBundle {
		s.log.Warn("delete session bundle", "username", username, "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type setGroupRequest struct {
	GroupID *int64 `json:"group_id"`
}

func (s *Server) handleSetGroup(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req setGroupRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	if err := s.store.UpdateAccountGroup(username, req.GroupID); err != nil {
		if err == storage.ErrNotFound {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		s.log.Error("set group", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "update failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	server := r.URL.Query().Get("server")
	if server == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "server query parameter is required")
		return
	}

	names, err := s.store.CharactersForServer(username, server)
	if err != nil {
		s.log.Error("list characters", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list characters")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"characters": names})
}
