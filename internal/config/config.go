package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type SourceKind string

const (
	SourceHub   SourceKind = "hub"
	SourceS3    SourceKind = "s3"
	SourceLocal SourceKind = "local"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Connection    ConnectionConfig
	Hub           HubConfig
	ObjectStore   ObjectStoreConfig
	Local         LocalConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ConnectionConfig is the named configuration block a dashboard binds to.
type ConnectionConfig struct {
	Name        string
	Dataset     string
	Source      SourceKind
	FileFilters []string
	DBPath      string
	// ForceRecreate reloads the dataset into DBPath even when it exists.
	ForceRecreate bool
	Verbose       bool
	QueryTTL      time.Duration
}

type HubConfig struct {
	BaseURL  string
	Token    string
	Revision string
	CacheDir string
	Timeout  time.Duration
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type LocalConfig struct {
	Root string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("HUGGINGDUCK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid HUGGINGDUCK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var source string
	steps := []func() error{
		func() error { return applyString(lookup, "HUGGINGDUCK_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "HUGGINGDUCK_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "HUGGINGDUCK_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "HUGGINGDUCK_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "HUGGINGDUCK_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "HUGGINGDUCK_CONNECTION_NAME", &cfg.Connection.Name) },
		func() error { return applyString(lookup, "HUGGINGDUCK_DATASET", &cfg.Connection.Dataset) },
		func() error { return applyString(lookup, "HUGGINGDUCK_SOURCE", &source) },
		func() error { return applyList(lookup, "HUGGINGDUCK_FILE_FILTERS", &cfg.Connection.FileFilters) },
		func() error { return applyString(lookup, "HUGGINGDUCK_DB_PATH", &cfg.Connection.DBPath) },
		func() error { return applyBool(lookup, "HUGGINGDUCK_FORCE_RECREATE", &cfg.Connection.ForceRecreate) },
		func() error { return applyBool(lookup, "HUGGINGDUCK_VERBOSE", &cfg.Connection.Verbose) },
		func() error { return applyDuration(lookup, "HUGGINGDUCK_QUERY_TTL", &cfg.Connection.QueryTTL) },
		func() error { return applyString(lookup, "HUGGINGDUCK_HUB_BASE_URL", &cfg.Hub.BaseURL) },
		func() error { return applyString(lookup, "HUGGINGDUCK_HUB_TOKEN", &cfg.Hub.Token) },
		func() error { return applyString(lookup, "HUGGINGDUCK_HUB_REVISION", &cfg.Hub.Revision) },
		func() error { return applyString(lookup, "HUGGINGDUCK_HUB_CACHE_DIR", &cfg.Hub.CacheDir) },
		func() error { return applyDuration(lookup, "HUGGINGDUCK_HUB_TIMEOUT", &cfg.Hub.Timeout) },
		func() error {
			return applyString(lookup, "HUGGINGDUCK_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint)
		},
		func() error { return applyString(lookup, "HUGGINGDUCK_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "HUGGINGDUCK_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "HUGGINGDUCK_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "HUGGINGDUCK_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "HUGGINGDUCK_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "HUGGINGDUCK_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyString(lookup, "HUGGINGDUCK_LOCAL_ROOT", &cfg.Local.Root) },
		func() error { return applyBool(lookup, "HUGGINGDUCK_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "HUGGINGDUCK_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "HUGGINGDUCK_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "HUGGINGDUCK_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if source != "" {
		cfg.Connection.Source = SourceKind(strings.ToLower(source))
	}
	if !isValidSource(cfg.Connection.Source) {
		return Config{}, fmt.Errorf("invalid HUGGINGDUCK_SOURCE: %q", cfg.Connection.Source)
	}
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Connection.QueryTTL < 0 {
		return Config{}, fmt.Errorf("query ttl must be >= 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "huggingduck-dashboard"},
		HTTP: HTTPConfig{
			Address:      ":8501",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Connection: ConnectionConfig{
			Name:        "titanic",
			Dataset:     "mjboothaus/titanic-databooth",
			Source:      SourceHub,
			FileFilters: []string{"csv"},
			DBPath:      "",
			Verbose:     false,
			QueryTTL:    time.Hour,
		},
		Hub: HubConfig{
			BaseURL:  "https://huggingface.co",
			Revision: "main",
			CacheDir: defaultCacheDir(),
			Timeout:  30 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "datasets",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
			UseSSL:          false,
		},
		Local: LocalConfig{
			Root: "data",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18501"
		cfg.Connection.Source = SourceLocal
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

func defaultCacheDir() string {
	home, err := os.UserCacheDir()
	if err != nil || home == "" {
		return ".huggingduck-cache"
	}
	return home + string(os.PathSeparator) + "huggingduck"
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidSource(source SourceKind) bool {
	switch source {
	case SourceHub, SourceS3, SourceLocal:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

// applyList reads a comma separated list, dropping empty entries.
func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
