package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPriorityColumns are hoisted to the front of the intermediate file.
var DefaultPriorityColumns = []string{"Title", "Image URL", "Brand", "Category", "modello", "versione", "canone_mensile", "sku"}

// Config holds all configuration for the application
type Config struct {
	Storage StorageConfig
	Convert ConvertConfig
	Upload  UploadConfig
	CDN     CDNConfig
	Cache   CacheConfig
	Server  ServerConfig
	Log     LogConfig
}

// StorageConfig holds sink-related configuration
type StorageConfig struct {
	Type             string // "postgresql", "mongodb", "dynamodb", "firestore", "memory"
	Region           string // For AWS DynamoDB
	TableName        string
	Endpoint         string // Custom endpoint for local testing
	MongoDBURI       string
	MongoDatabase    string
	PostgresURI      string
	FirestoreProject string
}

// ConvertConfig holds settings for the XML to intermediate file stage
type ConvertConfig struct {
	VehiclesFile    string
	MediaFile       string
	OutputFile      string
	SourceEncoding  string // "utf-8", "windows-1252", "iso-8859-1"
	TargetPostType  string
	ThumbnailKey    string
	PriorityColumns []string
}

// UploadConfig holds settings for the intermediate file to sink stage
type UploadConfig struct {
	InputFile       string
	RelocateImages  bool
	LegacyHost      string
	RelocateWorkers int
	DryRun          bool
}

// CDNConfig holds object storage settings for relocated images
type CDNConfig struct {
	Bucket            string
	Region            string
	Endpoint          string
	Folder            string
	PublicBaseURL     string
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64
}

// CacheConfig holds the optional relocation cache settings
type CacheConfig struct {
	RedisURL  string
	KeyPrefix string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// LogConfig selects the slog handler
type LogConfig struct {
	Format string // "json" or "text"
	Level  string
}

// fileConfig mirrors the optional YAML overlay.
type fileConfig struct {
	Convert struct {
		TargetPostType  string   `yaml:"target_post_type"`
		ThumbnailKey    string   `yaml:"thumbnail_key"`
		SourceEncoding  string   `yaml:"source_encoding"`
		PriorityColumns []string `yaml:"priority_columns"`
	} `yaml:"convert"`
	Upload struct {
		LegacyHost string `yaml:"legacy_host"`
	} `yaml:"upload"`
	CDN struct {
		Folder        string `yaml:"folder"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"cdn"`
}

// Load loads configuration from the env file, the environment and the
// optional YAML overlay, in that order of increasing precedence for the
// keys the overlay carries.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env.local")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	cfg := &Config{
		Storage: StorageConfig{
			Type:             getEnv("STORAGE_TYPE", "postgresql"),
			Region:           getEnv("AWS_REGION", "eu-south-1"),
			TableName:        getEnv("TABLE_NAME", "veicoli"),
			Endpoint:         getEnv("DYNAMODB_ENDPOINT", ""),
			MongoDBURI:       getEnv("MONGODB_URI", ""),
			MongoDatabase:    getEnv("MONGODB_DATABASE", "fleet"),
			PostgresURI:      getEnv("POSTGRES_URI", ""),
			FirestoreProject: getEnv("GOOGLE_CLOUD_PROJECT", ""),
		},
		Convert: ConvertConfig{
			VehiclesFile:    getEnv("VEHICLES_FILE", "vehicoli_sistema_antiguo.xml"),
			MediaFile:       getEnv("MEDIA_FILE", "media_dsas_antiguo.xml"),
			OutputFile:      getEnv("OUTPUT_FILE", "veicoli_migrazione.csv"),
			SourceEncoding:  getEnv("SOURCE_ENCODING", "utf-8"),
			TargetPostType:  getEnv("TARGET_POST_TYPE", "noleggiolungotermine"),
			ThumbnailKey:    getEnv("THUMBNAIL_KEY", "_thumbnail_id"),
			PriorityColumns: getEnvList("PRIORITY_COLUMNS", DefaultPriorityColumns),
		},
		Upload: UploadConfig{
			InputFile:       getEnv("INPUT_FILE", "veicoli_migrazione.csv"),
			RelocateImages:  getEnvBool("RELOCATE_IMAGES", true),
			LegacyHost:      getEnv("LEGACY_HOST", "sg-host.com"),
			RelocateWorkers: getEnvInt("RELOCATE_WORKERS", 1),
			DryRun:          getEnvBool("UPLOAD_DRY_RUN", false),
		},
		CDN: CDNConfig{
			Bucket:            getEnv("CDN_BUCKET", ""),
			Region:            getEnv("CDN_REGION", getEnv("AWS_REGION", "eu-south-1")),
			Endpoint:          getEnv("CDN_ENDPOINT", ""),
			Folder:            getEnv("CDN_FOLDER", "dsas-mobility"),
			PublicBaseURL:     getEnv("CDN_PUBLIC_BASE_URL", ""),
			Timeout:           getEnvDuration("CDN_TIMEOUT", 30*time.Second),
			RetryCount:        getEnvInt("CDN_RETRY_COUNT", 3),
			RequestsPerSecond: getEnvFloat("CDN_REQUESTS_PER_SECOND", 0),
		},
		Cache: CacheConfig{
			RedisURL:  getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "fleet:relocated:"),
		},
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "text"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.Convert.TargetPostType = firstNonEmpty(fc.Convert.TargetPostType, c.Convert.TargetPostType)
	c.Convert.ThumbnailKey = firstNonEmpty(fc.Convert.ThumbnailKey, c.Convert.ThumbnailKey)
	c.Convert.SourceEncoding = firstNonEmpty(fc.Convert.SourceEncoding, c.Convert.SourceEncoding)
	if len(fc.Convert.PriorityColumns) > 0 {
		c.Convert.PriorityColumns = fc.Convert.PriorityColumns
	}
	c.Upload.LegacyHost = firstNonEmpty(fc.Upload.LegacyHost, c.Upload.LegacyHost)
	c.CDN.Folder = firstNonEmpty(fc.CDN.Folder, c.CDN.Folder)
	c.CDN.PublicBaseURL = firstNonEmpty(fc.CDN.PublicBaseURL, c.CDN.PublicBaseURL)
	return nil
}

// Validate reports missing credentials for the selected sink.
func (s StorageConfig) Validate() error {
	switch s.Type {
	case "postgresql":
		if s.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_URI is required for storage type %q", s.Type)
		}
	case "mongodb":
		if s.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required for storage type %q", s.Type)
		}
	case "firestore":
		if s.FirestoreProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for storage type %q", s.Type)
		}
	case "dynamodb", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", s.Type)
	}
	if s.TableName == "" {
		return fmt.Errorf("TABLE_NAME must not be empty")
	}
	return nil
}

// Validate reports missing object storage settings.
func (c CDNConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("CDN_BUCKET is required when image relocation is enabled")
	}
	if c.RetryCount < 1 {
		return fmt.Errorf("CDN_RETRY_COUNT must be at least 1, got %d", c.RetryCount)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
