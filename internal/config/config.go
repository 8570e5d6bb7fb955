package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken     string
	DatabaseURL  string
	BotAPISecret string
	Location     *time.Location
	HTTPAddr     string
	CORSOrigins  []string
	LogLevel     string
	Env          string // dev|prod
	SentryDSN    string
	Release      string

	Hemis     HemisConfig
	Notify    NotifyConfig
	KeepAlive KeepAliveConfig
}

// HemisConfig — параметры обращения к HEMIS.
// Интервалы подобраны эмпирически, документации по лимитам у апстрима нет.
type HemisConfig struct {
	BaseURL         string
	Origin          string
	Timeout         time.Duration
	MinIntervalAuth time.Duration
	MinIntervalData time.Duration
}

type NotifyConfig struct {
	DailyAt     string // HH:MM в Location
	Parallelism int
}

// KeepAliveConfig — самопинг, чтобы бесплатный хостинг не усыплял процесс.
type KeepAliveConfig struct {
	URL      string // пусто — пингуется только хранилище
	Interval time.Duration
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Asia/Tashkent")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	timeout, err := getDuration("HEMIS_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	authGap, err := getDuration("HEMIS_MIN_INTERVAL_AUTH", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	dataGap, err := getDuration("HEMIS_MIN_INTERVAL_DATA", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	parallelism, err := getInt("NOTIFY_PARALLELISM", 4)
	if err != nil {
		return nil, err
	}
	keepAliveEvery, err := getDuration("KEEPALIVE_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	dailyAt := getenv("DAILY_SCHEDULE_AT", "07:00")
	if _, _, err := ParseClock(dailyAt); err != nil {
		return nil, fmt.Errorf("DAILY_SCHEDULE_AT: %w", err)
	}

	cfg := &Config{
		BotToken:     mustEnv("BOT_TOKEN"),
		DatabaseURL:  mustEnv("DATABASE_URL"),
		BotAPISecret: mustEnv("BOT_API_SECRET"),
		Location:     loc,
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		CORSOrigins:  splitList(getenv("CORS_ORIGINS", "*")),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		Env:          getenv("ENV", "dev"),
		SentryDSN:    os.Getenv("SENTRY_DSN"),
		Release:      getenv("RELEASE", "dev"),
		Hemis: HemisConfig{
			BaseURL:         strings.TrimRight(mustEnv("HEMIS_API_BASE"), "/"),
			Origin:          getenv("HEMIS_ORIGIN", "https://student.urdu.uz"),
			Timeout:         timeout,
			MinIntervalAuth: authGap,
			MinIntervalData: dataGap,
		},
		Notify: NotifyConfig{
			DailyAt:     dailyAt,
			Parallelism: parallelism,
		},
		KeepAlive: KeepAliveConfig{
			URL:      selfURL(),
			Interval: keepAliveEvery,
		},
	}
	return cfg, nil
}

// ParseClock разбирает "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("bad clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// selfURL — SELF_PING_URL или /healthz на внешнем адресе Render.
func selfURL() string {
	if v := os.Getenv("SELF_PING_URL"); v != "" {
		return v
	}
	if v := os.Getenv("RENDER_EXTERNAL_URL"); v != "" {
		return strings.TrimRight(v, "/") + "/healthz"
	}
	return ""
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", k, d)
	}
	return d, nil
}

func getInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", k, n)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
