package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/DrSkyle/bridgestore/pkg/compress"
	"github.com/spf13/viper"
)

// Config holds every setting a backend constructor may need. It is loaded
// once and passed by value; nothing reads the environment afterwards.
type Config struct {
	AWS    AWS    `mapstructure:"aws"`
	SQLite SQLite `mapstructure:"sqlite"`
	Local  Local  `mapstructure:"local"`

	// Backends restricts and orders the candidates probed at startup.
	// Empty means the default order.
	Backends []string `mapstructure:"backends"`

	CompressionLevel int `mapstructure:"compression_level"`

	// Verbose enables per-call AWS API logging.
	Verbose bool `mapstructure:"verbose"`

	Log       Log       `mapstructure:"log"`
	Telemetry Telemetry `mapstructure:"otel"`
}

// AWS holds credentials and targets shared by the S3 and DynamoDB backends.
type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`

	// Endpoint overrides the service endpoint (MinIO, LocalStack).
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`

	DynamoDBTable string `mapstructure:"dynamodb_table"`
}

// S3Configured reports whether all four values required by S3 are present.
func (a AWS) S3Configured() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != "" && a.Region != "" && a.Bucket != ""
}

// DynamoDBConfigured reports whether the DynamoDB backend can be built.
func (a AWS) DynamoDBConfigured() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != "" && a.Region != "" && a.DynamoDBTable != ""
}

type SQLite struct {
	Path string `mapstructure:"path"` // database file
}

type Local struct {
	Root string `mapstructure:"root"` // directory holding objects
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type Telemetry struct {
	Endpoint string `mapstructure:"endpoint"`
}

// bindings maps viper keys to the environment variables that feed them.
var bindings = map[string]string{
	"aws.access_key_id":     "BRIDGE_AWS_ACCESS_KEY_ID",
	"aws.secret_access_key": "BRIDGE_AWS_SECRET_ACCESS_KEY",
	"aws.region":            "BRIDGE_AWS_REGION",
	"aws.bucket":            "BRIDGE_AWS_BUCKET",
	"aws.endpoint":          "BRIDGE_AWS_ENDPOINT",
	"aws.use_path_style":    "BRIDGE_AWS_USE_PATH_STYLE",
	"aws.dynamodb_table":    "BRIDGE_AWS_DYNAMODB_TABLE",
	"sqlite.path":           "BRIDGE_SQLITE_PATH",
	"local.root":            "BRIDGE_LOCAL_ROOT",
	"backends":              "BRIDGE_BACKENDS",
	"compression_level":     "BRIDGE_COMPRESSION_LEVEL",
	"verbose":               "BRIDGE_VERBOSE",
	"log.level":             "BRIDGE_LOG_LEVEL",
	"log.json":              "BRIDGE_LOG_JSON",
	"otel.endpoint":         "BRIDGE_OTEL_ENDPOINT",
}

// EnvVar returns the environment variable bound to a config key.
func EnvVar(key string) string { return bindings[key] }

// Load reads the environment, falling back to envFile for anything the
// environment does not set. An empty envFile or a missing file is ignored.
func Load(envFile string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("compression_level", def.CompressionLevel)
	v.SetDefault("log.level", def.Log.Level)

	if envFile != "" {
		if err := mergeDotenv(v, envFile); err != nil {
			return Config{}, err
		}
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Backends = normalizeList(cfg.Backends)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeDotenv layers a dotenv file beneath the environment by installing
// its values as defaults.
func mergeDotenv(v *viper.Viper, path string) error {
	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")

	if err := dv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for key, env := range bindings {
		if dv.IsSet(env) {
			v.SetDefault(key, dv.Get(env))
		}
	}
	return nil
}

func normalizeList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks values that would otherwise fail deep inside a backend.
func (c Config) Validate() error {
	if c.CompressionLevel < compress.MinLevel || c.CompressionLevel > compress.MaxLevel {
		return fmt.Errorf("compression level %d out of range [%d, %d]",
			c.CompressionLevel, compress.MinLevel, compress.MaxLevel)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// SplitList parses a comma-separated backend list the way BRIDGE_BACKENDS is
// parsed.
func SplitList(s string) []string {
	return normalizeList([]string{s})
}
