package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	// Store
	StoreBackend string `yaml:"storeBackend" validate:"oneof=memory sqlite badger"`
	DBPath       string `yaml:"dbPath"`
	BadgerPath   string `yaml:"badgerPath"`
	SessionsRoot string `yaml:"sessionsRoot" validate:"required"`
	// Hierarchy
	RootFolderName     string   `yaml:"rootFolderName" validate:"required"`
	PathSeparator      string   `yaml:"pathSeparator" validate:"required"`
	ProtectedFolders   []string `yaml:"protectedFolders"`
	DefaultSessionName string   `yaml:"defaultSessionName" validate:"required"`
	// Export and launch
	ExportHive          string `yaml:"exportHive" validate:"required"`
	FolderLaunchWarning int    `yaml:"folderLaunchWarning" validate:"gte=0"`
	// Server
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	APIKey   string `yaml:"apiKey"`
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`
	// WatchPath is the file the watcher follows for external store changes.
	// Defaults to the active backend's database path.
	WatchPath string `yaml:"watchPath"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		StoreBackend:        "sqlite",
		DBPath:              "/data/sessions.db",
		BadgerPath:          "/data/sessions-badger",
		SessionsRoot:        `Software\SimonTatham\PuTTY\Sessions`,
		RootFolderName:      "Sessions",
		PathSeparator:       `\`,
		DefaultSessionName:  "Default Settings",
		ExportHive:          "HKEY_CURRENT_USER",
		FolderLaunchWarning: 10,
		Port:                8742,
		LogLevel:            "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// SESSIONS_CONFIG, and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("SESSIONS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.StoreBackend = envStr("STORE_BACKEND", c.StoreBackend)
	c.DBPath = envStr("SESSIONS_DB_PATH", c.DBPath)
	c.BadgerPath = envStr("SESSIONS_BADGER_PATH", c.BadgerPath)
	c.SessionsRoot = envStr("SESSIONS_ROOT", c.SessionsRoot)
	c.RootFolderName = envStr("ROOT_FOLDER_NAME", c.RootFolderName)
	c.PathSeparator = envStr("PATH_SEPARATOR", c.PathSeparator)
	c.ProtectedFolders = envList("PROTECTED_FOLDERS", c.ProtectedFolders)
	c.DefaultSessionName = envStr("DEFAULT_SESSION_NAME", c.DefaultSessionName)
	c.ExportHive = envStr("EXPORT_HIVE", c.ExportHive)
	c.FolderLaunchWarning = envInt("FOLDER_LAUNCH_WARNING", c.FolderLaunchWarning)
	c.Port = envInt("PORT", c.Port)
	c.APIKey = envStr("API_KEY", c.APIKey)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.WatchPath = envStr("SESSIONS_WATCH_PATH", c.WatchPath)
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q check (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return err
	}
	switch c.StoreBackend {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("SESSIONS_DB_PATH must not be empty for the sqlite backend")
		}
	case "badger":
		if c.BadgerPath == "" {
			return fmt.Errorf("SESSIONS_BADGER_PATH must not be empty for the badger backend")
		}
	}
	if strings.Contains(c.RootFolderName, c.PathSeparator) {
		return fmt.Errorf("ROOT_FOLDER_NAME %q must not contain PATH_SEPARATOR %q", c.RootFolderName, c.PathSeparator)
	}
	return nil
}

// StorePath returns the file or directory the active backend persists to.
func (c *Config) StorePath() string {
	switch c.StoreBackend {
	case "sqlite":
		return c.DBPath
	case "badger":
		return c.BadgerPath
	}
	return ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
