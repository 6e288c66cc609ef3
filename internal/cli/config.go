package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25

	// EnvPrefix prefixes every environment override, e.g. EASYRLS_DATABASE_URL.
	EnvPrefix = "EASYRLS"

	// dotEnvFile is read from the config file's directory, or the working
	// directory when there is no config file.
	dotEnvFile = ".env"
)

// configNames are tried in order in each directory during discovery.
var configNames = []string{"easyrls.yaml", "easyrls.yml"}

// Config represents the easyrls configuration from easyrls.yaml.
type Config struct {
	// Schema is the path of the schema JSON document.
	Schema string `mapstructure:"schema" json:"schema"`
	// Roles is the path of the roles JSON document.
	Roles string `mapstructure:"roles" json:"roles"`
	// Conditions is the path of drafted role_permissions SQL.
	Conditions string `mapstructure:"conditions" json:"conditions"`
	// Preamble controls whether scripts include the runtime preamble.
	Preamble bool `mapstructure:"preamble" json:"preamble"`

	Database   DatabaseConfig   `mapstructure:"database" json:"database"`
	Store      StoreConfig      `mapstructure:"store" json:"store"`
	Introspect IntrospectConfig `mapstructure:"introspect" json:"introspect"`
	Migrate    MigrateConfig    `mapstructure:"migrate" json:"migrate"`
	Doctor     DoctorConfig     `mapstructure:"doctor" json:"doctor"`
	Check      CheckConfig      `mapstructure:"check" json:"check"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// StoreConfig selects where documents are remembered between runs.
type StoreConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	Path   string `mapstructure:"path" json:"path"`
}

// IntrospectConfig holds introspect command settings.
type IntrospectConfig struct {
	SchemaName string `mapstructure:"schema_name" json:"schema_name"`
}

// MigrateConfig holds migration settings.
type MigrateConfig struct {
	DryRun bool `mapstructure:"dry_run" json:"dry_run"`
	Force  bool `mapstructure:"force" json:"force"`
}

// DoctorConfig holds doctor command settings.
type DoctorConfig struct {
	Verbose bool `mapstructure:"verbose" json:"verbose"`
}

// CheckConfig holds check command settings.
type CheckConfig struct {
	// DBRole is the database role assumed while evaluating authorize().
	DBRole string `mapstructure:"db_role" json:"db_role"`
	// JWTSecret verifies tokens passed with --jwt. Empty decodes them unverified.
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > .env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	dotEnvDir := "."
	if configPath != "" {
		dotEnvDir = filepath.Dir(configPath)
	}
	if err := loadDotEnv(dotEnvDir); err != nil {
		return nil, configPath, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Document defaults
	v.SetDefault("schema", "easyrls.schema.json")
	v.SetDefault("roles", "")
	v.SetDefault("conditions", "")
	v.SetDefault("preamble", true)

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Store defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", ".easyrls")

	// Introspect defaults
	v.SetDefault("introspect.schema_name", "public")

	// Migrate defaults
	v.SetDefault("migrate.dry_run", false)
	v.SetDefault("migrate.force", false)

	// Doctor defaults
	v.SetDefault("doctor.verbose", false)

	// Check defaults
	v.SetDefault("check.db_role", "authenticated")
	v.SetDefault("check.jwt_secret", "")
}

// loadDotEnv copies variables from dir/.env into the process environment.
// Variables already set are kept. A missing file is ignored.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, dotEnvFile)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for easyrls.yaml or easyrls.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

const redactedPassword = "REDACTED"

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.Check.JWTSecret != "" {
		out.Check.JWTSecret = redactedPassword
	}
	if out.Database.Password != "" {
		out.Database.Password = redactedPassword
	}
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), redactedPassword)
				out.Database.URL = u.String()
			}
		}
	}
	return out
}
