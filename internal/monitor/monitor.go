// Package monitor orchestrates batch and single-account checks: it
// enforces the single-flight discipline, diffs fresh scrapes against the
// previous persisted snapshot, buckets results by group and hands them
// to the notifier.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/roman-kripton/pw-twin-tools/internal/config"
	"github.com/roman-kripton/pw-twin-tools/internal/notifier"
	"github.com/roman-kripton/pw-twin-tools/internal/scraper"
	"github.com/roman-kripton/pw-twin-tools/internal/session"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

// ErrBusy signals that another check or activation is already in flight
var ErrBusy = errors.New("another check is already running")

// Checker drives one browser session per call
type Checker interface {
	CheckAccount(ctx context.Context, username string, cookies []session.Cookie) (*scraper.Result, error)
	ActivatePromo(ctx context.Context, username string, cookies []session.Cookie, code string) (scraper.PromoOutcome, error)
}

// Sessions enumerates and loads stored session bundles
type Sessions interface {
	List() ([]string, error)
	Load(username string) ([]session.Cookie, error)
}

// Reporter delivers batch reports and standalone warnings
type Reporter interface {
	SendReport(ctx context.Context, r *notifier.Report)
	SendText(ctx context.Context, text string) error
}

// Monitor coordinates account checks
type Monitor struct {
	cfg      *config.Config
	store    *storage.Storage
	sessions Sessions
	checker  Checker
	reporter Reporter
	log      *slog.Logger

	// busy is the single-flight flag shared by scheduled batches,
	// manual checks and promo activations
	busy atomic.Bool
}

func New(cfg *config.Config, store *storage.Storage, sessions Sessions, checker Checker, reporter Reporter, log *slog.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		checker:  checker,
		reporter: reporter,
		log:      log,
	}
}

// Busy reports whether a check or activation is currently in flight
func (m *Monitor) Busy() bool {
	return m.busy.Load()
}

// CheckAll sweeps every stored session bundle sequentially. A concurrent
// invocation is rejected immediately; the busy flag is cleared on every
// exit path.
func (m *Monitor) CheckAll(ctx context.Context) error {
	if !m.busy.CompareAndSwap(false, true) {
		m.log.Warn("check already in flight, skipping batch")
		return ErrBusy
	}
	defer m.busy.Store(false)

	m.log.Info("starting batch check")

	usernames, err := m.sessions.List()
	if err != nil {
		return fmt.Errorf("list session bundles: %w", err)
	}
	if len(usernames) == 0 {
		m.log.Warn("no session bundles found")
		m.reporter.SendText(ctx, "⚠️ Нет файлов сессий для проверки")
		return nil
	}

	// The previous snapshot is read once, before the sweep
	previous, err := m.store.Snapshots()
	if err != nil {
		return fmt.Errorf("read previous snapshot: %w", err)
	}

	report := notifier.NewReport()
	report.Total = len(usernames)
	for _, snap := range previous {
		report.Group(snap.GroupName)
	}

	for _, username := range usernames {
		prev := previous[username]

		groupName := storage.DefaultGroup
		displayName := username
		if prev != nil {
			groupName = prev.GroupName
			displayName = prev.DisplayName()
		}
		group := report.Group(groupName)

		res, err := m.checkAndPersist(ctx, username)
		if err != nil {
			m.log.Error("account check failed", "username", username, "error", err)
			group.Errors = append(group.Errors, fmt.Sprintf("🔴 %s: %s", displayName, checkErrorText(err)))
			continue
		}

		group.Success = append(group.Success, fmt.Sprintf("🟢 %s", displayName))

		if changes := diffAccount(prev, res); len(changes) > 0 {
			group.Changes = append(group.Changes,
				fmt.Sprintf("✨ %s (%s):\n%s", displayName, username, strings.Join(changes, "\n")))
		}
	}

	// The digest is read back from storage so accounts that failed this
	// sweep keep their previously persisted gifts in the report
	gifts, err := m.store.ExpiringGifts(m.cfg.GiftExpiryDays)
	if err != nil {
		m.log.Error("read expiring gifts", "error", err)
	} else if len(gifts) > 0 {
		report.ExpiringGifts = gifts
	}

	m.reporter.SendReport(ctx, report)
	m.log.Info("batch check complete", "total", report.Total,
		"success", report.Successes(), "errors", report.Failures())
	return nil
}

// CheckAccount runs a manual single-account refresh under the same
// single-flight flag as the batch.
func (m *Monitor) CheckAccount(ctx context.Context, username string) (*scraper.Result, error) {
	if !m.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer m.busy.Store(false)

	return m.checkAndPersist(ctx, username)
}

// checkAndPersist scrapes one account and, on success, writes the full
// snapshot (account row, task rows, roster, gifts) atomically.
func (m *Monitor) checkAndPersist(ctx context.Context, username string) (*scraper.Result, error) {
	m.log.Info("checking account", "username", username)

	cookies, err := m.sessions.Load(username)
	if err != nil {
		return nil, fmt.Errorf("load session bundle: %w", err)
	}

	res, err := m.checker.CheckAccount(ctx, username, cookies)
	if err != nil {
		return nil, err
	}

	err = m.store.SaveCheckResult(username, res.MdmCoins, res.CheckedAt, res.Tasks, res.Characters, res.Gifts)
	if err != nil {
		return nil, fmt.Errorf("persist check result: %w", err)
	}

	return res, nil
}

// checkErrorText maps check failures to the report's error lines
func checkErrorText(err error) string {
	switch {
	case errors.Is(err, scraper.ErrAuthLost):
		return "Ошибка авторизации"
	case errors.Is(err, scraper.ErrNoMarathonData):
		return "Не удалось получить данные марафона"
	case errors.Is(err, session.ErrNoBundle):
		return "Файл сессии не найден"
	default:
		return err.Error()
	}
}
