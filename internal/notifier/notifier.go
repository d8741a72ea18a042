// Package notifier formats batch-check results and delivers them to the
// report channel in Telegram-sized chunks.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/roman-kripton/pw-twin-tools/internal/config"
)

const (
	// maxMessageLen is Telegram's hard per-message ceiling
	maxMessageLen = 4096
	// splitTargetLen leaves headroom when splitting an oversized message
	splitTargetLen = 4000
	// groupBlockLimit caps the accumulated change lines within one group
	// block before a continuation message is started
	groupBlockLimit = 3500
	// sendPause paces successive sends of one report
	sendPause = time.Second
)

// Notifier sends check reports to the configured Telegram chat
type Notifier struct {
	cfg *config.Config
	bot *bot.Bot
	log *slog.Logger
}

// New creates a Notifier. Without a bot token it stays disabled and
// every send becomes a logged no-op.
func New(cfg *config.Config, log *slog.Logger) (*Notifier, error) {
	n := &Notifier{cfg: cfg, log: log}

	if cfg.BotToken == "" || cfg.ChatID == 0 {
		log.Warn("telegram reporting disabled: BOT_TOKEN or TELEGRAM_CHAT_ID not set")
		return n, nil
	}

	tgBot, err := bot.New(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	n.bot = tgBot
	return n, nil
}

// SendText escapes and sends one message to the report chat
func (n *Notifier) SendText(ctx context.Context, text string) error {
	if n.bot == nil {
		return nil
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.cfg.ChatID,
		Text:      EscapeMarkdownV2(text),
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		n.log.Error("send message", "error", err)
	}
	return err
}

// SendReport sends the summary header, one block per non-empty group,
// and the expiring-gifts digest. Oversized blocks are split and paced.
func (n *Notifier) SendReport(ctx context.Context, r *Report) {
	header := fmt.Sprintf(
		"\n📊 ОТЧЕТ О ПРОВЕРКЕ АККАУНТОВ\n"+
			"────────────────────────────\n"+
			"🔹 Всего проверено: %d\n"+
			"✅ Успешно: %d\n"+
			"❌ Ошибки: %d\n",
		r.Total, r.Successes(), r.Failures(),
	)
	n.SendText(ctx, header)

	for _, name := range r.GroupOrder {
		group := r.Groups[name]
		if group.empty() {
			continue
		}
		n.sendGroupBlock(ctx, name, group)
	}

	if len(r.ExpiringGifts) > 0 {
		n.sendChunked(ctx, n.formatGifts(r))
	}
}

func (n *Notifier) sendGroupBlock(ctx context.Context, name string, group *GroupReport) {
	parts := []string{fmt.Sprintf("\n🏷️ ГРУППА: %s\n```", strings.ToUpper(name))}

	if len(group.Success) > 0 {
		parts = append(parts, "\n✅ УСПЕШНО:\n"+strings.Join(group.Success, "\n"))
	}

	if len(group.Changes) > 0 {
		parts = append(parts, "\n🎯 ИЗМЕНЕНИЯ:")
		for _, change := range group.Changes {
			joined := strings.Join(parts, "\n") + "\n" + change
			if utf8.RuneCountInString(joined) > groupBlockLimit {
				parts = append(parts, "\n```")
				n.sendChunked(ctx, strings.Join(parts, "\n"))
				parts = []string{fmt.Sprintf("```\n🏷️ ГРУППА: %s (продолжение)\n", strings.ToUpper(name))}
			}
			parts = append(parts, "\n"+change)
		}
	}

	if len(group.Errors) > 0 {
		parts = append(parts, "\n⚠️ ОШИБКИ:\n"+strings.Join(group.Errors, "\n"))
	}

	parts = append(parts, "\n```")
	n.sendChunked(ctx, strings.Join(parts, "\n"))
}

// sendChunked splits text over the hard ceiling at line boundaries and
// paces the resulting sends.
func (n *Notifier) sendChunked(ctx context.Context, text string) {
	if utf8.RuneCountInString(text) <= maxMessageLen {
		n.SendText(ctx, text)
		return
	}

	var chunk []string
	length := 0
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		n.SendText(ctx, strings.Join(chunk, "\n"))
		chunk = chunk[:0]
		length = 0

		select {
		case <-time.After(sendPause):
		case <-ctx.Done():
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line) + 1
		if length+lineLen > splitTargetLen {
			flush()
		}
		chunk = append(chunk, line)
		length += lineLen
	}
	flush()
}

func (n *Notifier) formatGifts(r *Report) string {
	usernames := make([]string, 0, len(r.ExpiringGifts))
	for username := range r.ExpiringGifts {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	lines := []string{"```\n🎁 ПОДАРКИ СКОРО ИСТЕКАЮТ:"}
	for _, username := range usernames {
		lines = append(lines, fmt.Sprintf("\n👤 %s:", username))
		for _, g := range r.ExpiringGifts[username] {
			lines = append(lines, fmt.Sprintf("  • %s (до %s)", g.Name, g.Expires.Format("15:04 02.01.2006")))
		}
	}
	lines = append(lines, "```")
	return strings.Join(lines, "\n")
}
