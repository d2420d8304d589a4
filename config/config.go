package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Risk    RiskConfig    `yaml:"risk"`
	Trading TradingConfig `yaml:"trading"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// RiskConfig contiene los límites de riesgo y los umbrales de trading.
type RiskConfig struct {
	InitialBankroll         float64 `yaml:"initial_bankroll"`
	MaxPositionPct          float64 `yaml:"max_position_pct"`           // fracción máxima del bankroll por posición
	MinBet                  float64 `yaml:"min_bet"`
	MaxBet                  float64 `yaml:"max_bet"`
	MaxDailyLossPct         float64 `yaml:"max_daily_loss_pct"`
	MaxOpenPositions        int     `yaml:"max_open_positions"`
	MaxSingleMarketExposure float64 `yaml:"max_single_market_exposure"` // fracción del bankroll
	MinEdge                 float64 `yaml:"min_edge"`
	MinConfidence           float64 `yaml:"min_confidence"`
	MinLiquidity            float64 `yaml:"min_liquidity"`
	KellyFraction           float64 `yaml:"kelly_fraction"` // fracción conservadora del Kelly completo
}

// TradingConfig controla el loop de trading.
type TradingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// APIConfig contiene los base URLs de las APIs externas.
type APIConfig struct {
	CLOBBase     string `yaml:"clob_base"`
	GammaBase    string `yaml:"gamma_base"`
	ForecastBase string `yaml:"forecast_base"` // servicio externo de forecasts (debate)

	// Credenciales CLOB para trading real. Se cargan desde el .env.
	APIKey        string `yaml:"-"`
	APISecret     string `yaml:"-"`
	APIPassphrase string `yaml:"-"`
	Address       string `yaml:"-"` // dirección de la wallet asociada a las credenciales
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
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

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// TradeInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) TradeInterval() time.Duration {
	return time.Duration(c.Trading.IntervalSeconds) * time.Second
}

// HasCLOBCredentials devuelve true si hay credenciales completas para live trading.
func (c *Config) HasCLOBCredentials() bool {
	return c.API.APIKey != "" && c.API.APISecret != "" &&
		c.API.APIPassphrase != "" && c.API.Address != ""
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYMARKET_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("POLYMARKET_API_SECRET"); v != "" {
		cfg.API.APISecret = v
	}
	if v := os.Getenv("POLYMARKET_API_PASSPHRASE"); v != "" {
		cfg.API.APIPassphrase = v
	}
	if v := os.Getenv("POLYMARKET_ADDRESS"); v != "" {
		cfg.API.Address = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los defaults de riesgo son deliberadamente conservadores para un bankroll pequeño.
func setDefaults(cfg *Config) {
	if cfg.Risk.InitialBankroll <= 0 {
		cfg.Risk.InitialBankroll = 50
	}
	if cfg.Risk.MaxPositionPct <= 0 {
		cfg.Risk.MaxPositionPct = 0.10
	}
	if cfg.Risk.MinBet <= 0 {
		cfg.Risk.MinBet = 1.0
	}
	if cfg.Risk.MaxBet <= 0 {
		cfg.Risk.MaxBet = 10.0
	}
	if cfg.Risk.MaxDailyLossPct <= 0 {
		cfg.Risk.MaxDailyLossPct = 0.10
	}
	if cfg.Risk.MaxOpenPositions <= 0 {
		cfg.Risk.MaxOpenPositions = 8
	}
	if cfg.Risk.MaxSingleMarketExposure <= 0 {
		cfg.Risk.MaxSingleMarketExposure = 0.15
	}
	if cfg.Risk.MinEdge <= 0 {
		cfg.Risk.MinEdge = 0.08
	}
	if cfg.Risk.MinConfidence <= 0 {
		cfg.Risk.MinConfidence = 0.65
	}
	if cfg.Risk.MinLiquidity <= 0 {
		cfg.Risk.MinLiquidity = 1000
	}
	if cfg.Risk.KellyFraction <= 0 {
		cfg.Risk.KellyFraction = 0.15
	}
	if cfg.Trading.IntervalSeconds <= 0 {
		cfg.Trading.IntervalSeconds = 300
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyoracle.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
