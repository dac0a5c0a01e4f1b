package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string      `yaml:"env" env:"APP_ENV" env-default:"production"`
	LogLevel    string      `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	PGSQL       PQSQL       `yaml:"pgsql" env-required:"true"`
	HTTPServer  HTTPServer  `yaml:"http_server" env-required:"true"`
	Redis       Redis       `yaml:"redis"`
	JWTSecret   string      `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true" env-default:"super_secret_key"`
	Storage     Storage     `yaml:"storage"`
	Media       Media       `yaml:"media"`
	Transcoding Transcoding `yaml:"transcoding"`
	RateLimit   RateLimit   `yaml:"rate_limit"`
	Retry       Retry       `yaml:"retry"`
	Reconcile   Reconcile   `yaml:"reconcile"`
}

type HTTPServer struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-required:"true" env-default:"localhost:8080"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"15s"`
}

type PQSQL struct {
	Host     string `yaml:"host" env:"PG_HOST" env-required:"true" env-default:"localhost"`
	Port     string `yaml:"port" env:"PG_PORT" env-required:"true" env-default:"5432"`
	User     string `yaml:"user" env:"PG_USER" env-required:"true" env-default:"postgres"`
	Password string `yaml:"password" env:"PG_PASSWORD" env-required:"true" env-default:"password"`
	DBName   string `yaml:"dbname" env:"PG_DBNAME" env-required:"true" env-default:"media_db"`
	SSLMode  string `yaml:"sslmode" env:"PG_SSLMODE" env-required:"true" env-default:"disable"`
}

// Redis is optional. An empty address switches every Redis-backed component
// to its process-local implementation, which is only correct on a single node.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Storage struct {
	Provider        string        `yaml:"provider" env:"STORAGE_PROVIDER" env-default:"minio"`
	Endpoint        string        `yaml:"endpoint" env:"STORAGE_ENDPOINT"`
	Region          string        `yaml:"region" env:"STORAGE_REGION" env-default:"auto"`
	Bucket          string        `yaml:"bucket" env:"STORAGE_BUCKET"`
	AccessKeyID     string        `yaml:"access_key_id" env:"STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string        `yaml:"secret_access_key" env:"STORAGE_SECRET_ACCESS_KEY"`
	UseSSL          bool          `yaml:"use_ssl" env:"STORAGE_USE_SSL" env-default:"false"`
	PublicBaseURL   string        `yaml:"public_base_url" env:"STORAGE_PUBLIC_BASE_URL"`
	Namespace       string        `yaml:"namespace" env-default:"media"`
	CredentialTTL   time.Duration `yaml:"credential_ttl" env-default:"10m"`
}

// Configured reports whether the object-storage path can be used at all.
func (s Storage) Configured() bool {
	return strings.TrimSpace(s.Endpoint) != "" &&
		strings.TrimSpace(s.Bucket) != "" &&
		strings.TrimSpace(s.AccessKeyID) != "" &&
		strings.TrimSpace(s.SecretAccessKey) != ""
}

type Media struct {
	ImageMaxBytes     int64         `yaml:"image_max_bytes" env-default:"10485760"`
	VideoMaxBytes     int64         `yaml:"video_max_bytes" env-default:"2147483648"`
	AllowedImageTypes []string      `yaml:"allowed_image_types" env-default:"image/jpeg,image/png,image/webp,image/gif,image/heic"`
	AllowedVideoTypes []string      `yaml:"allowed_video_types" env-default:"video/mp4,video/quicktime,video/webm,video/x-matroska"`
	IntentTTL         time.Duration `yaml:"intent_ttl" env-default:"24h"`
}

type Transcoding struct {
	BaseURL            string        `yaml:"base_url" env:"TRANSCODING_BASE_URL" env-default:"https://api.cloudflare.com/client/v4"`
	AccountID          string        `yaml:"account_id" env:"TRANSCODING_ACCOUNT_ID"`
	APIToken           string        `yaml:"api_token" env:"TRANSCODING_API_TOKEN"`
	WebhookSecret      string        `yaml:"webhook_secret" env:"TRANSCODING_WEBHOOK_SECRET"`
	MaxDurationSeconds int           `yaml:"max_duration_seconds" env-default:"600"`
	Timeout            time.Duration `yaml:"timeout" env-default:"10s"`
}

func (t Transcoding) Configured() bool {
	return strings.TrimSpace(t.AccountID) != "" && strings.TrimSpace(t.APIToken) != ""
}

type RateLimit struct {
	UploadLimit  int           `yaml:"upload_limit" env-default:"20"`
	GalleryLimit int           `yaml:"gallery_limit" env-default:"30"`
	Window       time.Duration `yaml:"window" env-default:"1m"`
}

type Retry struct {
	MaxAttempts     int           `yaml:"max_attempts" env-default:"4"`
	InitialInterval time.Duration `yaml:"initial_interval" env-default:"200ms"`
	MaxInterval     time.Duration `yaml:"max_interval" env-default:"2s"`
}

// Reconcile drives the loop that settles video jobs whose webhook never
// arrived. Embedded runs it inside the HTTP service as well.
type Reconcile struct {
	Interval  time.Duration `yaml:"interval" env-default:"1m"`
	BatchSize int           `yaml:"batch_size" env-default:"100"`
	Embedded  bool          `yaml:"embedded" env:"RECONCILE_EMBEDDED" env-default:"false"`
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)

	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return &cfg
}
