package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Modos de ejecución.
const (
	ModeSimulation = "simulation"
	ModeLive       = "live"
)

// Config es la configuración completa de polycopy.
type Config struct {
	Engine  EngineConfig   `yaml:"engine"`
	Copy    CopyConfig     `yaml:"copy"`
	Sources []SourceConfig `yaml:"sources"`
	API     APIConfig      `yaml:"api"`
	Storage StorageConfig  `yaml:"storage"`
	Notify  NotifyConfig   `yaml:"notify"`
	Gateway GatewayConfig  `yaml:"gateway"`
	Control ControlConfig  `yaml:"control"`
	Log     LogConfig      `yaml:"log"`
}

// EngineConfig controla el loop de polling.
type EngineConfig struct {
	Mode                   string `yaml:"mode"` // simulation | live
	PollIntervalSeconds    int    `yaml:"poll_interval_seconds"`
	MaxIterations          int    `yaml:"max_iterations"`           // 0 = sin límite
	PollWorkers            int    `yaml:"poll_workers"`             // 0 = NumCPU*2
	ReputationRefreshEvery int    `yaml:"reputation_refresh_every"` // iteraciones
	StopFile               string `yaml:"stop_file"`
}

// CopyConfig son las opciones tipadas de sizing y riesgo.
type CopyConfig struct {
	SizingPolicy           string        `yaml:"sizing_policy"` // whale_ratio | fixed | confidence_scaled
	CopyRatio              float64       `yaml:"copy_ratio"`
	BaseAmount             float64       `yaml:"base_amount"`
	FixedAmount            float64       `yaml:"fixed_amount"`
	MinPositionSize        float64       `yaml:"min_position_size"`
	MaxPositionSize        float64       `yaml:"max_position_size"`
	MinConfidence          int           `yaml:"min_confidence"`
	MaxOpenPositions       int           `yaml:"max_open_positions"`
	MaxDailyLoss           float64       `yaml:"max_daily_loss"`
	CooldownDuration       time.Duration `yaml:"cooldown_duration"` // "1h", "30m"
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
}

// SourceConfig registra una cuenta a copiar.
type SourceConfig struct {
	Address     string  `yaml:"address"`
	Name        string  `yaml:"name"`
	Disabled    bool    `yaml:"disabled"`
	AccuracyPct float64 `yaml:"accuracy_pct"` // reputación semilla hasta el primer refresh
	TotalTrades int     `yaml:"total_trades"`
	NetProfit   float64 `yaml:"net_profit"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	DataBase  string `yaml:"data_base"`
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN                    string `yaml:"dsn"`                      // ruta al archivo SQLite, o ":memory:"
	EventsRetentionDays    int    `yaml:"events_retention_days"`    // 0 = conservar siempre
	PositionsRetentionDays int    `yaml:"positions_retention_days"` // solo posiciones cerradas; 0 = siempre
}

// NotifyConfig activa los sinks de notificación.
type NotifyConfig struct {
	Console       bool   `yaml:"console"`
	WebhookURL    string `yaml:"webhook_url"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisChannel  string `yaml:"redis_channel"`
	RedisStream   string `yaml:"redis_stream"`
}

// GatewayConfig configura la ejecución live.
type GatewayConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RPCURL         string `yaml:"rpc_url"` // Polygon RPC para el preflight del wallet
	Wallet         string `yaml:"wallet"`
}

// ControlConfig configura la API de control. Addr vacío la desactiva.
type ControlConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // vacío = solo stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica YAML, aplica overrides de entorno y defaults, y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// Sizing convierte la sección copy a domain.SizingConfig.
func (c *Config) Sizing() domain.SizingConfig {
	return domain.SizingConfig{
		Policy:          domain.SizingPolicy(c.Copy.SizingPolicy),
		CopyRatio:       c.Copy.CopyRatio,
		BaseAmount:      c.Copy.BaseAmount,
		FixedAmount:     c.Copy.FixedAmount,
		MinPositionSize: c.Copy.MinPositionSize,
		MaxPositionSize: c.Copy.MaxPositionSize,
	}
}

// RiskLimits convierte la sección copy a domain.RiskLimits.
func (c *Config) RiskLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MinConfidence:          c.Copy.MinConfidence,
		MinPositionSize:        c.Copy.MinPositionSize,
		MaxPositionSize:        c.Copy.MaxPositionSize,
		MaxOpenPositions:       c.Copy.MaxOpenPositions,
		MaxDailyLoss:           c.Copy.MaxDailyLoss,
		CooldownDuration:       c.Copy.CooldownDuration,
		MaxConsecutiveFailures: c.Copy.MaxConsecutiveFailures,
	}
}

// TrackedSources valida y normaliza las direcciones registradas.
func (c *Config) TrackedSources() ([]domain.TrackedSource, error) {
	out := make([]domain.TrackedSource, 0, len(c.Sources))
	for i, s := range c.Sources {
		rep := domain.Reputation{AccuracyPct: s.AccuracyPct, TotalTrades: s.TotalTrades, NetProfit: s.NetProfit}
		src, err := domain.NewTrackedSource(s.Address, s.Name, rep)
		if err != nil {
			return nil, fmt.Errorf("config: sources[%d]: %w", i, err)
		}
		src.Disabled = s.Disabled
		out = append(out, src)
	}
	return out, nil
}

// Validate falla ante errores de configuración. Nunca corrige valores.
func (c *Config) Validate() error {
	var errs []error

	switch c.Engine.Mode {
	case ModeSimulation, ModeLive:
	default:
		errs = append(errs, fmt.Errorf("engine.mode %q: want simulation or live", c.Engine.Mode))
	}
	if c.Engine.Mode == ModeLive && c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway.url is required in live mode"))
	}

	if _, err := domain.ParseSizingPolicy(c.Copy.SizingPolicy); err != nil {
		errs = append(errs, err)
	} else if err := c.Sizing().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Copy.MinConfidence < 0 || c.Copy.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("copy.min_confidence %d out of [0,100]", c.Copy.MinConfidence))
	}
	if c.Copy.MaxOpenPositions <= 0 {
		errs = append(errs, fmt.Errorf("copy.max_open_positions %d must be > 0", c.Copy.MaxOpenPositions))
	}
	if c.Copy.MaxDailyLoss <= 0 {
		errs = append(errs, fmt.Errorf("copy.max_daily_loss %.2f must be > 0", c.Copy.MaxDailyLoss))
	}
	if c.Storage.EventsRetentionDays < 0 || c.Storage.PositionsRetentionDays < 0 {
		errs = append(errs, errors.New("storage: retention days must be >= 0"))
	}
	if c.Copy.CooldownDuration < 0 {
		errs = append(errs, fmt.Errorf("copy.cooldown_duration %s must be >= 0", c.Copy.CooldownDuration))
	}

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("sources: at least one source is required"))
	}
	if _, err := c.TrackedSources(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYCOPY_MODE"); v != "" {
		cfg.Engine.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Notify.RedisAddr = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los límites de riesgo y sizing no tienen default salvo los del modelo.
func setDefaults(cfg *Config) {
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = ModeSimulation
	}
	if cfg.Engine.PollIntervalSeconds <= 0 {
		cfg.Engine.PollIntervalSeconds = 30
	}
	if cfg.Engine.ReputationRefreshEvery <= 0 {
		cfg.Engine.ReputationRefreshEvery = 120 // ~1h a 30s
	}
	if cfg.Engine.StopFile == "" {
		cfg.Engine.StopFile = "STOP"
	}
	if cfg.Copy.SizingPolicy == "" {
		cfg.Copy.SizingPolicy = string(domain.SizingConfidenceScaled)
	}
	if cfg.Copy.MaxConsecutiveFailures <= 0 {
		cfg.Copy.MaxConsecutiveFailures = 3
	}
	if cfg.Copy.CooldownDuration == 0 {
		cfg.Copy.CooldownDuration = time.Hour
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polycopy.db"
	}
	if cfg.Notify.RedisChannel == "" {
		cfg.Notify.RedisChannel = "polycopy:signals"
	}
	if cfg.Notify.RedisStream == "" {
		cfg.Notify.RedisStream = "polycopy:signals:stream"
	}
	if cfg.Gateway.TimeoutSeconds <= 0 {
		cfg.Gateway.TimeoutSeconds = 15
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 14
	}
}
