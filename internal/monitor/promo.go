package monitor

import (
	"context"
	"fmt"

	"github.com/roman-kripton/pw-twin-tools/internal/scraper"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

// PromoResult aggregates one activation batch
type PromoResult struct {
	Activated int `json:"activated"`
	Errors    int `json:"errors"`
}

// ActivatePromo attempts the code on each candidate account in sequence.
// Once the code is classified invalid or expired, the rest of the batch
// is marked failed without opening a browser session. Shares the
// single-flight flag with the checks.
func (m *Monitor) ActivatePromo(ctx context.Context, code string, accounts []string) (*PromoResult, error) {
	if !m.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer m.busy.Store(false)

	result := &PromoResult{}
	codeStatus := storage.PromoActive

	for _, username := range accounts {
		if codeStatus != storage.PromoActive {
			// Code is already known dead: record without a session
			if err := m.store.SaveAccountPromo(username, code, storage.PromoFailed); err != nil {
				m.log.Error("record skipped activation", "username", username, "error", err)
			}
			result.Errors++
			continue
		}

		outcome, err := m.activateOne(ctx, username, code)
		if err != nil {
			m.log.Error("promo activation failed", "username", username, "code", code, "error", err)
			result.Errors++
			continue
		}

		switch outcome {
		case scraper.PromoOutcomeActivated:
			m.recordActivation(username, code, storage.PromoSuccess)
			result.Activated++
		case scraper.PromoOutcomeAlreadyActivated:
			m.recordActivation(username, code, storage.PromoAlreadyActivated)
			result.Activated++
		case scraper.PromoOutcomeInvalid:
			m.recordActivation(username, code, storage.PromoFailed)
			m.recordCodeStatus(code, storage.PromoInvalid)
			codeStatus = storage.PromoInvalid
			result.Errors++
		case scraper.PromoOutcomeExpired:
			m.recordActivation(username, code, storage.PromoFailed)
			m.recordCodeStatus(code, storage.PromoExpired)
			codeStatus = storage.PromoExpired
			result.Errors++
		default:
			m.recordActivation(username, code, storage.PromoFailed)
			result.Errors++
		}
	}

	m.log.Info("promo activation complete", "code", code,
		"activated", result.Activated, "errors", result.Errors)
	return result, nil
}

func (m *Monitor) activateOne(ctx context.Context, username, code string) (scraper.PromoOutcome, error) {
	cookies, err := m.sessions.Load(username)
	if err != nil {
		return scraper.PromoOutcomeFailed, fmt.Errorf("load session bundle: %w", err)
	}

	return m.checker.ActivatePromo(ctx, username, cookies, code)
}

func (m *Monitor) recordActivation(username, code, status string) {
	if err := m.store.SaveAccountPromo(username, code, status); err != nil {
		m.log.Error("record activation", "username", username, "code", code, "error", err)
	}
}

func (m *Monitor) recordCodeStatus(code, status string) {
	if err := m.store.SavePromoCodeStatus(code, status); err != nil {
		m.log.Error("record code status", "code", code, "error", err)
	}
}
