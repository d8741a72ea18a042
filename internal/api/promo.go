package api

import (
	"net/http"
	"strings"

	"github.com/roman-kripton/pw-twin-tools/internal/monitor"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

type activatePromoRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleActivatePromo(w http.ResponseWriter, r *http.Request) {
	var req activatePromoRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "promo code must not be empty")
		return
	}

	// A code known dead is rejected without touching any account
	status, err := s.store.PromoCodeStatus(code)
	if err == nil {
		switch status {
		case storage.PromoExpired:
			respondError(w, http.StatusConflict, ErrCodeConflict, "promo code has expired")
			return
		case storage.PromoInvalid:
			respondError(w, http.StatusConflict, ErrCodeConflict, "promo code is invalid")
			return
		}
	} else if err != storage.ErrNotFound {
		s.log.Error("promo status lookup", "code", code, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "status lookup failed")
		return
	}

	accounts, err := s.store.AccountsForPromo(code)
	if err != nil {
		s.log.Error("promo candidates", "code", code, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "candidate lookup failed")
		return
	}
	if len(accounts) == 0 {
		respondError(w, http.StatusConflict, ErrCodeConflict, "no accounts eligible for activation")
		return
	}

	result, err := s.monitor.ActivatePromo(r.Context(), code, accounts)
	if err == monitor.ErrBusy {
		respondError(w, http.StatusLocked, ErrCodeBusy, "another check is already running")
		return
	}
	if err != nil {
		s.log.Error("promo activation", "code", code, "error", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "activation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"activated": result.Activated,
		"errors":    result.Errors,
	})
}
