package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Map      MapConfig      `yaml:"map" mapstructure:"map"`
	Dataset  DatasetConfig  `yaml:"dataset" mapstructure:"dataset"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// BackendConfig configures the call/region HTTP backend.
type BackendConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// BoundaryConfig locates the neighbourhood boundary dataset.
type BoundaryConfig struct {
	Source            string `yaml:"source" mapstructure:"source"`
	Municipality      string `yaml:"municipality" mapstructure:"municipality"`
	NameField         string `yaml:"name_field" mapstructure:"name_field"`
	MunicipalityField string `yaml:"municipality_field" mapstructure:"municipality_field"`
}

// MapConfig holds the initial selection state and rendering options.
type MapConfig struct {
	RadiusKM    float64 `yaml:"radius_km" mapstructure:"radius_km"`
	MonthYear   string  `yaml:"month_year" mapstructure:"month_year"`
	CrimeType   string  `yaml:"crime_type" mapstructure:"crime_type"`
	Metric      string  `yaml:"metric" mapstructure:"metric"`
	RenderMode  string  `yaml:"render_mode" mapstructure:"render_mode"`
	FillOpacity float64 `yaml:"fill_opacity" mapstructure:"fill_opacity"`
	CenterLat   float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon   float64 `yaml:"center_lon" mapstructure:"center_lon"`
}

// DatasetConfig selects the metric capability profile of the deployed backend.
type DatasetConfig struct {
	Profile     string `yaml:"profile" mapstructure:"profile"`
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// ServerConfig configures the map HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// NotifyConfig configures user-facing failure notices.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	MaxNotices int    `yaml:"max_notices" mapstructure:"max_notices"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Variables in a .env
// file in the working directory are added to the environment first; real
// environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRIMEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.base_url", "http://localhost:8001")
	v.SetDefault("backend.timeout_secs", 0)
	v.SetDefault("backend.rate_limit", 0)
	v.SetDefault("backend.user_agent", "crime-map/1.0")
	v.SetDefault("boundary.source", "geo/groningen_buurten.geojson")
	v.SetDefault("boundary.municipality", "groningen")
	v.SetDefault("boundary.name_field", "BUURTNAAM")
	v.SetDefault("boundary.municipality_field", "GM_NAAM")
	v.SetDefault("map.radius_km", 6.0)
	v.SetDefault("map.month_year", "2025-08")
	v.SetDefault("map.crime_type", "")
	v.SetDefault("map.metric", "incidents")
	v.SetDefault("map.render_mode", "polygon")
	v.SetDefault("map.fill_opacity", 0.35)
	v.SetDefault("map.center_lat", 53.2194)
	v.SetDefault("map.center_lon", 6.5665)
	v.SetDefault("dataset.profile", "groningen")
	v.SetDefault("dataset.profile_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("notify.max_notices", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		missing = append(missing, "backend.base_url")
	}
	if strings.TrimSpace(c.Boundary.NameField) == "" {
		missing = append(missing, "boundary.name_field")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required values: %s", strings.Join(missing, ", "))
	}

	if c.Map.RadiusKM <= 0 {
		return eris.Errorf("config: map.radius_km must be positive, got %g", c.Map.RadiusKM)
	}
	if c.Map.FillOpacity < 0 || c.Map.FillOpacity > 1 {
		return eris.Errorf("config: map.fill_opacity must be within [0,1], got %g", c.Map.FillOpacity)
	}
	switch c.Map.RenderMode {
	case "polygon", "marker":
	default:
		return eris.Errorf("config: unknown map.render_mode %q", c.Map.RenderMode)
	}
	if c.Backend.RateLimit < 0 {
		return eris.Errorf("config: backend.rate_limit must not be negative, got %g", c.Backend.RateLimit)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
