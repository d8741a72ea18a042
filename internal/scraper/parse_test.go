package scraper

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCurrent int
		wantTotal   int
		wantPercent float64
	}{
		{"simple", "3/10", 3, 10, 30},
		{"complete", "10/10", 10, 10, 100},
		{"zero current", "0/5", 0, 5, 0},
		{"spaces", " 7 / 14 ", 7, 14, 50},
		{"zero total falls back", "5/0", 0, 1, 0},
		{"missing separator", "42", 0, 1, 0},
		{"garbage", "abc/def", 0, 1, 0},
		{"empty", "", 0, 1, 0},
		{"partial garbage", "3/x", 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, total, percent := ParseProgress(tt.input)
			assert.Equal(t, tt.wantCurrent, current)
			assert.Equal(t, tt.wantTotal, total)
			assert.InDelta(t, tt.wantPercent, percent, 0.001)
		})
	}
}

func TestParseCharacter(t *testing.T) {
	c := ParseCharacter("Мечник (Воин, уровень: 85)")
	assert.Equal(t, "Мечник", c.Name)
	assert.Equal(t, "Воин", c.Class)
	assert.Equal(t, 85, c.Level)

	// Unrecognized format keeps the raw text as the name
	c = ParseCharacter("ПростоИмя")
	assert.Equal(t, "ПростоИмя", c.Name)
	assert.Empty(t, c.Class)
	assert.Zero(t, c.Level)
}

func TestParseGiftDate(t *testing.T) {
	expires, err := ParseGiftDate("(до 20:31 16.07.2025)")
	require.NoError(t, err)
	assert.Equal(t, 2025, expires.Year())
	assert.Equal(t, time.July, expires.Month())
	assert.Equal(t, 16, expires.Day())
	assert.Equal(t, 20, expires.Hour())
	assert.Equal(t, 31, expires.Minute())

	_, err = ParseGiftDate("когда-нибудь")
	assert.Error(t, err)
}

const marathonHTML = `
<html><body>
<div class="season_marathon">
  <div>
    <div class="info"><b>Ежедневный вход</b></div>
    <div class="progress">5/10</div>
  </div>
  <div>
    <div class="info"><b>Победы на арене</b></div>
    <div class="progress">0/3</div>
  </div>
  <div>
    <div class="info"><b>Сломанное задание</b></div>
    <div class="progress">n/a</div>
  </div>
</div>
</body></html>`

func TestParseMarathonTasks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(marathonHTML))
	require.NoError(t, err)

	now := time.Now()
	tasks := parseMarathonTasks(doc, now)
	require.Len(t, tasks, 3)

	assert.Equal(t, "Ежедневный вход", tasks[0].Name)
	assert.Equal(t, 5, tasks[0].Current)
	assert.Equal(t, 10, tasks[0].Total)
	assert.InDelta(t, 50.0, tasks[0].Percent, 0.001)
	assert.Equal(t, now, tasks[0].Timestamp)

	assert.Equal(t, "Победы на арене", tasks[1].Name)
	assert.Equal(t, 0, tasks[1].Current)

	// Malformed progress normalizes instead of dropping the task
	assert.Equal(t, 0, tasks[2].Current)
	assert.Equal(t, 1, tasks[2].Total)
	assert.Zero(t, tasks[2].Percent)
}

func TestParseGifts(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.Local)
	html := `
<html><body>
<table class="promo_items"><tbody>
  <tr><td><label>Сундук героя <span class="date_end">(до 20:31 16.07.2025)</span></label></td></tr>
  <tr><td><label>Далёкий подарок <span class="date_end">(до 10:00 01.09.2025)</span></label></td></tr>
  <tr><td><label>Без даты</label></td></tr>
</tbody></table>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	gifts := parseGifts(doc, now, 7)
	require.Len(t, gifts, 1)
	assert.Equal(t, "Сундук героя", gifts[0].Name)
	assert.Equal(t, 16, gifts[0].Expires.Day())
}

func TestParseGiftsEmptyCart(t *testing.T) {
	html := `<html><body><div id="content_top"><h2>Ваша корзина с подарками пуста</h2></div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.True(t, isGiftCartEmpty(doc))
	assert.Empty(t, parseGifts(doc, time.Now(), 7))
}

func TestParseCharacterOptions(t *testing.T) {
	html := `
<html><body>
<div class="char_selector">
  <select class="js-shard"><option>Скорпион</option><option>Феникс</option></select>
  <select class="js-char">
    <option>Мечник (Воин, уровень: 85)</option>
    <option></option>
    <option>Лучница (Стрелок, уровень: 40)</option>
  </select>
</div>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	servers := parseServerOptions(doc)
	assert.Equal(t, []string{"Скорпион", "Феникс"}, servers)

	chars := parseCharacterOptions(doc, "Скорпион")
	require.Len(t, chars, 2)
	assert.Equal(t, "Скорпион", chars[0].Server)
	assert.Equal(t, "Мечник", chars[0].Name)
	assert.Equal(t, 40, chars[1].Level)
}

func TestPromoErrorText(t *testing.T) {
	html := `<html><body><div id="content_body"><div class="m_error"> Некорректный пин-код </div></div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Некорректный пин-код", promoErrorText(doc))

	clean, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><div id='content_body'></div></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, promoErrorText(clean))
}
