package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	BotToken string
	ChatID   int64

	// Database
	DBPath string

	// Session bundles
	SessionsDir string

	// Browser automation
	ChromeRemoteURL string
	PageTimeout     time.Duration

	// Portal pages
	MarathonURL string
	ChestsURL   string
	GiftsURL    string
	PromoURL    string

	// Monitoring
	CheckInterval  time.Duration
	GiftExpiryDays int

	// Manual trigger API
	APIPort int
}

func Load() *Config {
	return &Config{
		// Telegram
		BotToken: getEnv("BOT_TOKEN", ""),
		ChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),

		// Database
		DBPath: getEnv("DB_PATH", "./monitor.db"),

		// Session bundles
		SessionsDir: getEnv("SESSIONS_DIR", "./sessions"),

		// Browser automation
		ChromeRemoteURL: getEnv("CHROME_REMOTE_URL", ""),
		PageTimeout:     time.Duration(getEnvInt("PAGE_TIMEOUT_SEC", 30)) * time.Second,

		// Portal pages
		MarathonURL: strings.TrimSuffix(getEnv("MARATHON_URL", "https://pwonline.ru/supermarathon2.php"), "/"),
		ChestsURL:   getEnv("CHESTS_URL", "https://pwonline.ru/chests2.php"),
		GiftsURL:    getEnv("GIFTS_URL", "https://pwonline.ru/promo_items.php"),
		PromoURL:    getEnv("PROMO_URL", "https://pw.mail.ru/pin.php"),

		// Monitoring
		CheckInterval:  time.Duration(getEnvInt("CHECK_INTERVAL_MIN", 30)) * time.Minute,
		GiftExpiryDays: getEnvInt("GIFT_EXPIRY_DAYS", 7),

		// Manual trigger API
		APIPort: getEnvInt("API_PORT", 5009),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
