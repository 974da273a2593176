package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig
	Backend BackendConfig
	State   StateConfig
	Logger  LoggerConfig
	Catalog CatalogConfig
	Session SessionConfig
	Printer PrinterConfig
	CORS    CORSConfig
}

type AppConfig struct {
	Port      string
	StoreName string
	Timezone  string
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type StateConfig struct {
	Backend string // bolt or memory
	File    string
}

type LoggerConfig struct {
	Mode       string // production or development
	FileEnable bool
	File       string
}

type CatalogConfig struct {
	PageLimit      int
	NameCheckDelay time.Duration
}

type SessionConfig struct {
	RequiredRoles []string
}

type PrinterConfig struct {
	Type    string
	USBPath string
	Address string
	Width   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8081")
	v.SetDefault("STORE_NAME", "Artemisa")
	v.SetDefault("TIMEZONE", "America/Bogota")
	v.SetDefault("BACKEND_URL", "http://localhost:8080")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("STATE_BACKEND", "bolt")
	v.SetDefault("STATE_FILE", "./artemisa-state.db")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("LOG_FILE_ENABLE", false)
	v.SetDefault("LOG_FILE", "./logs/artemisa-pos.log")
	v.SetDefault("PAGE_LIMIT", 10)
	v.SetDefault("NAME_CHECK_DELAY", "800ms")
	v.SetDefault("REQUIRED_ROLES", "Admin")
	v.SetDefault("PRINTER_TYPE", "none")
	v.SetDefault("PRINTER_USB_PATH", "/dev/usb/lp0")
	v.SetDefault("PRINTER_ADDRESS", "")
	v.SetDefault("PRINTER_WIDTH", 32)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
}

// Load reads the optional file at path (a .env when empty) and the
// environment, which wins over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = ".env"
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Port:      v.GetString("APP_PORT"),
			StoreName: v.GetString("STORE_NAME"),
			Timezone:  v.GetString("TIMEZONE"),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
			Timeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		State: StateConfig{
			Backend: v.GetString("STATE_BACKEND"),
			File:    v.GetString("STATE_FILE"),
		},
		Logger: LoggerConfig{
			Mode:       v.GetString("LOG_MODE"),
			FileEnable: v.GetBool("LOG_FILE_ENABLE"),
			File:       v.GetString("LOG_FILE"),
		},
		Catalog: CatalogConfig{
			PageLimit:      v.GetInt("PAGE_LIMIT"),
			NameCheckDelay: v.GetDuration("NAME_CHECK_DELAY"),
		},
		Session: SessionConfig{
			RequiredRoles: list(v.GetString("REQUIRED_ROLES")),
		},
		Printer: PrinterConfig{
			Type:    v.GetString("PRINTER_TYPE"),
			USBPath: v.GetString("PRINTER_USB_PATH"),
			Address: v.GetString("PRINTER_ADDRESS"),
			Width:   v.GetInt("PRINTER_WIDTH"),
		},
		CORS: CORSConfig{
			AllowedOrigins: list(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.State.Backend {
	case "bolt", "memory":
	default:
		return fmt.Errorf("STATE_BACKEND must be bolt or memory, got %q", c.State.Backend)
	}
	if c.Backend.URL == "" {
		return errors.New("BACKEND_URL is required")
	}
	if c.Catalog.PageLimit < 1 {
		return fmt.Errorf("PAGE_LIMIT must be positive, got %d", c.Catalog.PageLimit)
	}
	if len(c.Session.RequiredRoles) == 0 {
		return errors.New("REQUIRED_ROLES must name at least one role")
	}
	return nil
}

// Location resolves the configured timezone, falling back to time.Local.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// list splits a comma separated value, dropping blanks.
func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
