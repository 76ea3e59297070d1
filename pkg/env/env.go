package env

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string
	TZ      string

	// Public HTTPS base URL for Twilio webhooks; the media-stream WS URL is
	// derived from it (https -> wss).
	PublicBaseURL string

	RedisURL string

	// Voice model (OpenAI Realtime)
	OpenAIApiKey       string
	RealtimeModel      string
	RealtimeVoice      string
	RealtimeBaseURL    string
	SystemInstructions string

	// Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// KnownCallers maps E.164 numbers to display names; the greeting addresses
	// a recognized caller by name.
	KnownCallers map[string]string
	// OwnerNumber receives the post-hangup summary SMS.
	OwnerNumber string

	// TransferDirectory maps spoken labels (e.g. "front desk") to E.164
	// destinations for transfer_call.
	TransferDirectory map[string]string

	HoldMusicDir string

	// Session duration limits.
	WarningAfter time.Duration
	HangupAfter  time.Duration

	// Tool backends
	SendgridApiKey string
	EmailFrom      string
	SearchApiKey   string
	SearchBaseURL  string
	GeoBaseURL     string
	WeatherBaseURL string
	RouteBaseURL   string

	WebhookRateLimitRPM int

	LogLevel           string
	CORSAllowedOrigins string

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine; production runs on real environment variables.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "8080"),
		TZ:      getEnv("TZ", "UTC"),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		OpenAIApiKey:       mustGetEnv("OPENAI_API_KEY"),
		RealtimeModel:      getEnv("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		RealtimeVoice:      getEnv("REALTIME_VOICE", "alloy"),
		RealtimeBaseURL:    getEnv("REALTIME_BASE_URL", "wss://api.openai.com/v1/realtime"),
		SystemInstructions: getEnv("SYSTEM_INSTRUCTIONS", ""),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		KnownCallers:      parsePairs(getEnv("KNOWN_CALLERS", "")),
		OwnerNumber:       getEnv("OWNER_NUMBER", ""),
		TransferDirectory: parsePairs(getEnv("TRANSFER_DIRECTORY", "")),

		HoldMusicDir: getEnv("HOLD_MUSIC_DIR", ""),

		WarningAfter: getEnvDuration("SESSION_WARNING_AFTER", 50*time.Minute),
		HangupAfter:  getEnvDuration("SESSION_HANGUP_AFTER", 55*time.Minute),

		SendgridApiKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		SearchApiKey:   getEnv("SEARCH_API_KEY", ""),
		SearchBaseURL:  getEnv("SEARCH_BASE_URL", "https://api.search.brave.com/res/v1"),
		GeoBaseURL:     getEnv("GEO_BASE_URL", "https://nominatim.openstreetmap.org"),
		WeatherBaseURL: getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com"),
		RouteBaseURL:   getEnv("ROUTE_BASE_URL", "https://router.project-osrm.org"),

		WebhookRateLimitRPM: getEnvInt("WEBHOOK_RATE_LIMIT_RPM", 120),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", cfg.TZ, err)
	}
	time.Local = loc

	return cfg, nil
}

// CallerName returns the configured display name for a caller number.
func (c *Config) CallerName(number string) (string, bool) {
	name, ok := c.KnownCallers[number]
	return name, ok
}

// TransferLabels lists directory labels in stable order for prompts.
func (c *Config) TransferLabels() []string {
	labels := make([]string, 0, len(c.TransferDirectory))
	for l := range c.TransferDirectory {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// parsePairs parses "key:value,key:value" lists, e.g.
// KNOWN_CALLERS="+15550001111:Alice,+15550002222:Bob".
func parsePairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
