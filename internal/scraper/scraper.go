// Package scraper drives a browser session against the game portal and
// extracts task progress, currency balance, character rosters and gift
// deadlines from its fixed page layouts.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/roman-kripton/pw-twin-tools/internal/config"
	"github.com/roman-kripton/pw-twin-tools/internal/retry"
	"github.com/roman-kripton/pw-twin-tools/internal/session"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

var (
	// ErrAuthLost means the session bundle no longer authenticates:
	// the portal served the login page instead of the account area.
	ErrAuthLost = errors.New("session authorization lost")

	// ErrNoMarathonData means the marathon blocks were absent from the page
	ErrNoMarathonData = errors.New("marathon data not found on page")
)

// PromoOutcome classifies one activation attempt
type PromoOutcome int

const (
	PromoOutcomeActivated PromoOutcome = iota
	PromoOutcomeAlreadyActivated
	PromoOutcomeInvalid
	PromoOutcomeExpired
	PromoOutcomeFailed
)

// Result is a successful single-account scrape
type Result struct {
	Username   string
	MdmCoins   string
	Tasks      []storage.TaskProgress
	Characters []storage.Character
	Gifts      []storage.Gift
	CheckedAt  time.Time
}

// Scraper owns the browser allocator; every check runs in its own tab
// context created from it and cancelled before the check returns.
type Scraper struct {
	cfg         *config.Config
	log         *slog.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// New builds the allocator (remote when CHROME_REMOTE_URL is set, local
// headless otherwise) and probes it with bounded backoff.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Scraper, error) {
	var allocCtx context.Context
	var cancel context.CancelFunc

	if cfg.ChromeRemoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, cfg.ChromeRemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	s := &Scraper{
		cfg:         cfg,
		log:         log,
		allocCtx:    allocCtx,
		allocCancel: cancel,
	}

	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context, attempt int) error {
		if err := s.probe(); err != nil {
			log.Warn("browser backend not ready", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("browser backend unavailable: %w", err)
	}

	log.Info("browser backend ready", "remote", cfg.ChromeRemoteURL != "")
	return s, nil
}

// Close releases the browser allocator
func (s *Scraper) Close() {
	s.allocCancel()
}

func (s *Scraper) probe() error {
	tabCtx, cancel := chromedp.NewContext(s.allocCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 10*time.Second)
	defer cancelTimeout()

	return chromedp.Run(tabCtx, chromedp.Navigate("about:blank"))
}

// CheckAccount replays the account's session and scrapes its state.
// The tab is cancelled on every exit path.
func (s *Scraper) CheckAccount(ctx context.Context, username string, cookies []session.Cookie) (*Result, error) {
	tabCtx, cancel := chromedp.NewContext(s.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 3*s.cfg.PageTimeout)
	defer cancelTimeout()

	if err := s.openSession(tabCtx, cookies); err != nil {
		return nil, err
	}

	var title string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(s.cfg.MarathonURL),
		chromedp.Title(&title),
	)
	if err != nil {
		return nil, fmt.Errorf("open marathon page: %w", err)
	}
	if strings.Contains(title, "Войти") {
		return nil, ErrAuthLost
	}

	checkedAt := time.Now()

	doc, err := s.pageDocument(tabCtx)
	if err != nil {
		return nil, fmt.Errorf("read marathon page: %w", err)
	}
	tasks := parseMarathonTasks(doc, checkedAt)
	if len(tasks) == 0 {
		return nil, ErrNoMarathonData
	}

	// Characters and coins are best-effort: their failure degrades the
	// result instead of failing the whole check.
	characters := s.collectCharacters(tabCtx, username)

	gifts, err := s.collectGifts(tabCtx, checkedAt)
	if err != nil {
		s.log.Warn("collect gifts", "username", username, "error", err)
	}

	coins := s.collectCoins(tabCtx, username)

	return &Result{
		Username:   username,
		MdmCoins:   coins,
		Tasks:      tasks,
		Characters: characters,
		Gifts:      gifts,
		CheckedAt:  checkedAt,
	}, nil
}

// ActivatePromo replays the session and submits the pin activation URL,
// classifying the outcome from the response page.
func (s *Scraper) ActivatePromo(ctx context.Context, username string, cookies []session.Cookie, code string) (PromoOutcome, error) {
	tabCtx, cancel := chromedp.NewContext(s.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 2*s.cfg.PageTimeout)
	defer cancelTimeout()

	if err := s.openSession(tabCtx, cookies); err != nil {
		return PromoOutcomeFailed, err
	}

	activateURL := fmt.Sprintf("%s?do=activate&game_account=1&pin=%s", s.cfg.PromoURL, url.QueryEscape(code))
	if err := chromedp.Run(tabCtx, chromedp.Navigate(activateURL)); err != nil {
		return PromoOutcomeFailed, fmt.Errorf("open activation page: %w", err)
	}

	doc, err := s.pageDocument(tabCtx)
	if err != nil {
		return PromoOutcomeFailed, fmt.Errorf("read activation result: %w", err)
	}

	errText := promoErrorText(doc)
	switch {
	case errText == "":
		return PromoOutcomeActivated, nil
	case strings.Contains(errText, "Пин-код уже активирован"):
		return PromoOutcomeAlreadyActivated, nil
	case strings.Contains(errText, "Некорректный пин-код"):
		return PromoOutcomeInvalid, nil
	case strings.Contains(errText, "Время действия пин-кода истекло"):
		return PromoOutcomeExpired, nil
	default:
		return PromoOutcomeFailed, fmt.Errorf("activation rejected: %s", errText)
	}
}

// openSession loads the portal root and installs the session cookies
func (s *Scraper) openSession(ctx context.Context, cookies []session.Cookie) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate("https://pwonline.ru/"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				p := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly)
				if c.Expires > 0 {
					expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
					p = p.WithExpires(&expires)
				}
				if err := p.Do(ctx); err != nil {
					s.log.Warn("set cookie", "name", c.Name, "error", err)
				}
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("apply session: %w", err)
	}
	return nil
}

// collectCharacters walks the server selector on the gifts page and
// reads the roster option list per server. Failures log and return nil;
// the roster is supplementary data.
func (s *Scraper) collectCharacters(ctx context.Context, username string) []storage.Character {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(s.cfg.GiftsURL),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		s.log.Warn("open gifts page", "username", username, "error", err)
		return nil
	}

	doc, err := s.pageDocument(ctx)
	if err != nil {
		s.log.Warn("read gifts page", "username", username, "error", err)
		return nil
	}
	if isGiftCartEmpty(doc) {
		return nil
	}

	servers := parseServerOptions(doc)
	if len(servers) == 0 {
		s.log.Warn("server selector not found", "username", username)
		return nil
	}

	var characters []storage.Character
	for _, server := range servers {
		err := chromedp.Run(ctx,
			chromedp.SetValue(`div.char_selector select.js-shard`, server, chromedp.ByQuery),
			chromedp.Sleep(time.Second),
		)
		if err != nil {
			s.log.Warn("select server", "username", username, "server", server, "error", err)
			continue
		}

		serverDoc, err := s.pageDocument(ctx)
		if err != nil {
			s.log.Warn("read roster", "username", username, "server", server, "error", err)
			continue
		}
		characters = append(characters, parseCharacterOptions(serverDoc, server)...)
	}

	return characters
}

// collectGifts re-reads the gifts page and keeps entries expiring within
// the configured window.
func (s *Scraper) collectGifts(ctx context.Context, now time.Time) ([]storage.Gift, error) {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(s.cfg.GiftsURL),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return nil, err
	}

	doc, err := s.pageDocument(ctx)
	if err != nil {
		return nil, err
	}
	return parseGifts(doc, now, s.cfg.GiftExpiryDays), nil
}

// collectCoins reads the MDM balance off the chests page; "0" on any failure
func (s *Scraper) collectCoins(ctx context.Context, username string) string {
	coinsCtx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()

	var coins string
	err := chromedp.Run(coinsCtx,
		chromedp.Navigate(s.cfg.ChestsURL),
		chromedp.Text(`div.chest_shop div.points_info strong`, &coins, chromedp.ByQuery),
	)
	if err != nil {
		s.log.Warn("read mdm coins", "username", username, "error", err)
		return "0"
	}

	coins = strings.TrimSpace(coins)
	if coins == "" {
		return "0"
	}
	return coins
}

// pageDocument captures the current DOM and hands it to goquery
func (s *Scraper) pageDocument(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
