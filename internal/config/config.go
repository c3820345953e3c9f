package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type MySQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type Config struct {
	Addr             string
	StaticDir        string
	CORSAllowOrigins []string
	AdminToken       string
	LogLevel         string
	LogFormat        string
	SessionTTL       time.Duration
	ModelsFile       string

	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateDefaultModel string
	ReplicateTimeout      time.Duration
	ReplicatePollInterval time.Duration
	ReplicateHTTPTimeout  time.Duration
	GenerateConcurrency   int
	PreferIPv4            bool

	BunnyPullBaseURL string
	BunnyStorageZone string
	BunnyStorageKey  string
	MirrorMaxBytes   int
	// Hosts, subdomains included, the mirror may download from.
	MirrorAllowedHosts []string

	MySQL MySQLConfig
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func Load() Config {
	port := getenv("PORT", "8080")

	return Config{
		Addr:             ":" + port,
		StaticDir:        os.Getenv("STATIC_DIR"),
		CORSAllowOrigins: splitCSV(os.Getenv("CORS_ALLOW_ORIGINS")),
		AdminToken:       strings.TrimSpace(getenvFirst([]string{"ADMIN_TOKEN", "ADMIN_KEY"}, "")),
		LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getenv("LOG_FORMAT", "json")),
		SessionTTL:       time.Duration(getenvInt("SESSION_TTL_HOURS", 24*14, 1, 24*90)) * time.Hour,
		ModelsFile:       os.Getenv("MODELS_FILE"),

		ReplicateAPIToken:     strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:      getenv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateDefaultModel: getenv("REPLICATE_DEFAULT_MODEL", "stability-ai/sdxl:c221b2b8ef527988fb59bf24a8b97c4561f1c671f73bd389f866bfb27c061316"),
		ReplicateTimeout:      time.Duration(getenvInt("REPLICATE_TIMEOUT_SECONDS", 180, 5, 900)) * time.Second,
		ReplicatePollInterval: time.Duration(getenvInt("REPLICATE_POLL_INTERVAL_MS", 1500, 100, 30000)) * time.Millisecond,
		ReplicateHTTPTimeout:  time.Duration(getenvInt("REPLICATE_HTTP_TIMEOUT_SECONDS", 60, 5, 300)) * time.Second,
		GenerateConcurrency:   getenvInt("GENERATE_CONCURRENCY", 4, 1, 64),
		PreferIPv4:            getenvBool("PREFER_IPV4", false),

		BunnyPullBaseURL:   getenv("BUNNY_PULL_BASE_URL", ""),
		BunnyStorageZone:   os.Getenv("BUNNY_STORAGE_ZONE"),
		BunnyStorageKey:    os.Getenv("BUNNY_STORAGE_ACCESS_KEY"),
		MirrorMaxBytes:     getenvInt("MIRROR_MAX_BYTES", 16<<20, 64*1024, 64<<20),
		MirrorAllowedHosts: splitCSV(getenv("MIRROR_ALLOWED_HOSTS", "replicate.delivery")),

		MySQL: MySQLConfig{
			Host:     getenv("DB_HOST", "127.0.0.1"),
			Port:     getenv("DB_PORT", "3306"),
			User:     getenv("DB_USER", "headshots"),
			Password: getenv("DB_PASSWORD", "headshots"),
			DBName:   getenv("DB_NAME", "headshots"),
		},
	}
}

// BunnyConfigured reports whether generated images should be mirrored to the CDN.
func (c Config) BunnyConfigured() bool {
	return strings.TrimSpace(c.BunnyStorageKey) != "" && strings.TrimSpace(c.BunnyStorageZone) != "" && strings.TrimSpace(c.BunnyPullBaseURL) != ""
}

func getenv(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getenvFirst(keys []string, fallback string) string {
	for _, key := range keys {
		val := strings.TrimSpace(os.Getenv(key))
		if val != "" {
			return val
		}
	}
	return fallback
}

func getenvInt(key string, fallback int, min int, max int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if min > 0 && v < min {
		return fallback
	}
	if max > 0 && v > max {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func splitCSV(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
