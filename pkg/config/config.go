package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/appshelf.yaml"
)

// Image storage backends.
const (
	ImagesBackendLocal = "local"
	ImagesBackendMinio = "minio"
)

type Config struct {
	// Database
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	// Server
	ServerHost string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort int    `koanf:"server_port" default:"5080"`

	// Storage layout
	DataDir         string `koanf:"data_dir" default:"/data"`
	DefaultScanPath string `koanf:"default_scan_path"`

	// Remote metadata and translation
	MetadataHTTPTimeout     time.Duration `koanf:"metadata_http_timeout" default:"20s"`
	MetadataUserAgent       string        `koanf:"metadata_user_agent" default:"Mozilla/5.0 (compatible; appshelf/1.0)"`
	TranslateTargetLanguage string        `koanf:"translate_target_language" default:"ru"`

	// Images
	ImagesBackend  string `koanf:"images_backend" default:"local"`
	MinioEndpoint  string `koanf:"minio_endpoint"`
	MinioAccessKey string `koanf:"minio_access_key"`
	MinioSecretKey string `koanf:"minio_secret_key"`
	MinioBucket    string `koanf:"minio_bucket" default:"appshelf-images"`
	MinioRegion    string `koanf:"minio_region"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`

	// Packaging
	ChocoPath        string `koanf:"choco_path" default:"choco"`
	PackageOutputDir string `koanf:"package_output_dir"`
}

// New loads the config from the YAML file named by CONFIG_FILE (if it exists)
// and then applies environment variable overrides. Environment variables are
// the upper-cased config keys, e.g. DATABASE_FILE_PATH for database_file_path.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config pointing at an in-memory database and a
// throwaway data directory.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.DataDir = filepath.Join(os.TempDir(), "appshelf-test")
	cfg.DatabaseConnectRetryDelay = 10 * time.Millisecond
	return cfg
}

// ImagesDir is where the local image backend writes downloaded images.
func (cfg *Config) ImagesDir() string {
	return filepath.Join(cfg.DataDir, "images", "packages")
}

// PackagesDir is where built packages are written.
func (cfg *Config) PackagesDir() string {
	if cfg.PackageOutputDir != "" {
		return cfg.PackageOutputDir
	}
	return filepath.Join(cfg.DataDir, "packages")
}

func validateRequired(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if !v.Field(i).IsZero() {
			continue
		}
		key := toSnakeCase(field.Name)
		return errors.Errorf("missing required config: set %s or %s in the config file", strings.ToUpper(key), key)
	}
	return nil
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
