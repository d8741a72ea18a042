package scraper

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

var (
	characterRegex = regexp.MustCompile(`^(.+?)\s*\((.+?),\s*уровень:\s*(\d+)\)$`)

	errNoGiftDate = errors.New("gift date not recognized")
)

// giftDateLayout matches the portal's "(до 20:31 16.07.2025)" stamps
const giftDateLayout = "15:04 02.01.2006"

// ParseProgress parses a "current/total" progress string. Malformed input
// and zero totals fall back to (0, 1, 0) instead of failing the check.
func ParseProgress(progress string) (current, total int, percent float64) {
	parts := strings.SplitN(strings.TrimSpace(progress), "/", 2)
	if len(parts) != 2 {
		return 0, 1, 0
	}

	x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errY != nil || y == 0 {
		return 0, 1, 0
	}

	return x, y, float64(x) / float64(y) * 100
}

// ParseCharacter parses a roster option "Name (Class, уровень: N)".
// Text that does not match keeps the whole string as the name.
func ParseCharacter(text string) storage.Character {
	text = strings.TrimSpace(text)
	m := characterRegex.FindStringSubmatch(text)
	if m == nil {
		return storage.Character{Name: text}
	}

	level, _ := strconv.Atoi(m[3])
	return storage.Character{
		Name:  strings.TrimSpace(m[1]),
		Class: strings.TrimSpace(m[2]),
		Level: level,
	}
}

// ParseGiftDate parses an expiry stamp "(до 20:31 16.07.2025)"
func ParseGiftDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(до ")
	text = strings.TrimSuffix(text, ")")

	t, err := time.ParseInLocation(giftDateLayout, text, time.Local)
	if err != nil {
		return time.Time{}, errNoGiftDate
	}
	return t, nil
}

// parseMarathonTasks extracts the marathon objectives from the season
// page: one block per task, name under .info b, progress under .progress.
func parseMarathonTasks(doc *goquery.Document, checkedAt time.Time) []storage.TaskProgress {
	var tasks []storage.TaskProgress

	doc.Find("div.season_marathon > div").Each(func(_ int, block *goquery.Selection) {
		name := strings.TrimSpace(block.Find("div.info b").First().Text())
		progress := strings.TrimSpace(block.Find("div.progress").First().Text())
		if name == "" || progress == "" {
			return
		}

		current, total, percent := ParseProgress(progress)
		tasks = append(tasks, storage.TaskProgress{
			Name:      name,
			Current:   current,
			Total:     total,
			Percent:   percent,
			Timestamp: checkedAt,
		})
	})

	return tasks
}

// parseGifts extracts the pending gifts expiring within the window.
// The page shows one table row per gift with the deadline in span.date_end.
func parseGifts(doc *goquery.Document, now time.Time, windowDays int) []storage.Gift {
	if isGiftCartEmpty(doc) {
		return nil
	}

	deadline := now.AddDate(0, 0, windowDays)
	var gifts []storage.Gift

	doc.Find("table.promo_items tbody tr").Each(func(_ int, row *goquery.Selection) {
		dateText := strings.TrimSpace(row.Find("span.date_end").First().Text())
		if dateText == "" {
			return
		}

		expires, err := ParseGiftDate(dateText)
		if err != nil {
			return
		}

		name := strings.TrimSpace(strings.Replace(row.Find("label").First().Text(), dateText, "", 1))
		if name == "" {
			return
		}

		if !expires.After(deadline) {
			gifts = append(gifts, storage.Gift{Name: name, Expires: expires})
		}
	})

	return gifts
}

// isGiftCartEmpty detects the "cart is empty" heading on the gifts page
func isGiftCartEmpty(doc *goquery.Document) bool {
	empty := false
	doc.Find("#content_top h2").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(h.Text(), "Ваша корзина с подарками пуста") {
			empty = true
			return false
		}
		return true
	})
	return empty
}

// parseServerOptions lists the server names offered by the shard selector
func parseServerOptions(doc *goquery.Document) []string {
	var servers []string
	doc.Find("div.char_selector select.js-shard option").Each(func(_ int, opt *goquery.Selection) {
		if name := strings.TrimSpace(opt.Text()); name != "" {
			servers = append(servers, name)
		}
	})
	return servers
}

// parseCharacterOptions reads the roster selector for one server
func parseCharacterOptions(doc *goquery.Document, server string) []storage.Character {
	var chars []storage.Character
	doc.Find("div.char_selector select.js-char option").Each(func(_ int, opt *goquery.Selection) {
		text := strings.TrimSpace(opt.Text())
		if text == "" {
			return
		}
		c := ParseCharacter(text)
		c.Server = server
		chars = append(chars, c)
	})
	return chars
}

// promoErrorText finds the activation error banner, empty when activation
// went through.
func promoErrorText(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#content_body div.m_error").First().Text())
}
