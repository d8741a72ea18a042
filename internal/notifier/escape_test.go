package notifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "привет мир", "привет мир"},
		{"dot and dash", "task 3/10 - done.", "task 3/10 \\- done\\."},
		{"all specials", "_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
		{"fence passes through", "before.\n```\n🟢 user_1 (ok)!\n```\nafter.", "before\\.\n```\n🟢 user_1 (ok)!\n```\nafter\\."},
		{"unterminated fence", "```\nraw (text).", "```\nraw (text)."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeMarkdownV2(tt.input))
		})
	}
}

func TestEscapeMarkdownV2MultipleFences(t *testing.T) {
	input := "a.\n```one!```\nb.\n```two?```\nc."
	got := EscapeMarkdownV2(input)

	assert.Contains(t, got, "```one!```")
	assert.Contains(t, got, "```two?```")
	assert.Equal(t, 3, strings.Count(got, "\\."))
}
