package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"videohub/api/internal/validate"
)

const (
	UploadBackendDisk = "disk"
	UploadBackendS3   = "s3"

	// DefaultUploadMaxBytes is 1000 MiB.
	DefaultUploadMaxBytes int64 = 1000 * 1024 * 1024
)

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type UploadsConfig struct {
	Folder   string
	Backend  string
	MaxBytes int64
}

type MongoConfig struct {
	URI            string
	Host           string
	Port           string
	Username       string
	Password       string
	Database       string
	ConnectTimeout time.Duration
}

type JWTConfig struct {
	AccessSecret      string
	RefreshSecret     string
	AccessExpiration  string
	RefreshExpiration string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type JobsConfig struct {
	SessionSweep string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type AppConfig struct {
	Environment string
	HTTP        HTTPConfig
	Uploads     UploadsConfig
	Mongo       MongoConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Jobs        JobsConfig
	CORS        CORSConfig
}

// envBindings keeps the historical variable names (PORT, UPLOADS_FOLDER, MONGO_*, JWT_*)
// rather than deriving them from the key path.
var envBindings = map[string]string{
	"environment":           "ENVIRONMENT",
	"http.host":             "HTTP_HOST",
	"http.port":             "PORT",
	"http.readtimeout":      "HTTP_READ_TIMEOUT",
	"http.writetimeout":     "HTTP_WRITE_TIMEOUT",
	"http.idletimeout":      "HTTP_IDLE_TIMEOUT",
	"uploads.folder":        "UPLOADS_FOLDER",
	"uploads.backend":       "UPLOADS_BACKEND",
	"uploads.maxbytes":      "UPLOADS_MAX_BYTES",
	"mongo.uri":             "MONGO_URI",
	"mongo.host":            "MONGO_HOST",
	"mongo.port":            "MONGO_PORT",
	"mongo.username":        "MONGO_APP_USERNAME",
	"mongo.password":        "MONGO_APP_PASSWORD",
	"mongo.database":        "MONGO_DATABASE",
	"mongo.connecttimeout":  "MONGO_CONNECT_TIMEOUT",
	"jwt.accesssecret":      "JWT_ACCESS_SECRET",
	"jwt.refreshsecret":     "JWT_REFRESH_SECRET",
	"jwt.accessexpiration":  "JWT_ACCESS_EXPIRATION",
	"jwt.refreshexpiration": "JWT_REFRESH_EXPIRATION",
	"redis.addr":            "REDIS_ADDR",
	"redis.password":        "REDIS_PASSWORD",
	"redis.db":              "REDIS_DB",
	"storage.endpoint":      "STORAGE_ENDPOINT",
	"storage.accesskey":     "STORAGE_ACCESS_KEY",
	"storage.secretkey":     "STORAGE_SECRET_KEY",
	"storage.bucket":        "STORAGE_BUCKET",
	"storage.usessl":        "STORAGE_USE_SSL",
	"storage.region":        "STORAGE_REGION",
	"jobs.sessionsweep":     "JOBS_SESSION_SWEEP",
	"cors.allowedorigins":   "CORS_ALLOWED_ORIGINS",
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*AppConfig, error) {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Uploads.Backend = strings.ToLower(strings.TrimSpace(cfg.Uploads.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	// Uploads of up to 1000 MiB need generous read/write windows.
	v.SetDefault("http.readtimeout", "30m")
	v.SetDefault("http.writetimeout", "30m")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("uploads.backend", UploadBackendDisk)
	v.SetDefault("uploads.maxbytes", DefaultUploadMaxBytes)

	v.SetDefault("mongo.host", "localhost")
	v.SetDefault("mongo.connecttimeout", "10s")

	v.SetDefault("jwt.accessexpiration", "15m")
	v.SetDefault("jwt.refreshexpiration", "7d")

	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "videohub-uploads")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("jobs.sessionsweep", "0 */10 * * * *")
}

func (c *AppConfig) Validate() error {
	val := &validate.Validator{}

	port, err := strconv.Atoi(strings.TrimSpace(c.HTTP.Port))
	switch {
	case strings.TrimSpace(c.HTTP.Port) == "":
		val.Required("PORT", c.HTTP.Port)
	case err != nil:
		val.Custom("PORT", true, "Port must be an integer")
	default:
		val.Range("PORT", port, 1, 65535)
	}

	val.Required("UPLOADS_FOLDER", c.Uploads.Folder)
	val.OneOf("UPLOADS_BACKEND", c.Uploads.Backend, UploadBackendDisk, UploadBackendS3)
	val.Custom("UPLOADS_MAX_BYTES", c.Uploads.MaxBytes <= 0, "Must be a positive number of bytes")

	if c.Mongo.URI == "" {
		val.Required("MONGO_HOST", c.Mongo.Host).
			Required("MONGO_PORT", c.Mongo.Port).
			Required("MONGO_APP_USERNAME", c.Mongo.Username).
			Required("MONGO_APP_PASSWORD", c.Mongo.Password)
	}
	val.Required("MONGO_DATABASE", c.Mongo.Database)

	val.Required("JWT_ACCESS_SECRET", c.JWT.AccessSecret).
		Required("JWT_REFRESH_SECRET", c.JWT.RefreshSecret)

	if c.Uploads.Backend == UploadBackendS3 {
		val.Required("STORAGE_ENDPOINT", c.Storage.Endpoint).
			Required("STORAGE_BUCKET", c.Storage.Bucket)
	}

	return val.Err()
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return net.JoinHostPort(c.HTTP.Host, strings.TrimSpace(c.HTTP.Port))
}

// ConnectionString composes the Mongo URI from its parts unless MONGO_URI was given.
func (m MongoConfig) ConnectionString() string {
	if m.URI != "" {
		return m.URI
	}

	u := url.URL{
		Scheme:   "mongodb",
		User:     url.UserPassword(m.Username, m.Password),
		Host:     net.JoinHostPort(m.Host, m.Port),
		Path:     "/" + m.Database,
		RawQuery: url.Values{"authSource": []string{m.Database}}.Encode(),
	}
	return u.String()
}
