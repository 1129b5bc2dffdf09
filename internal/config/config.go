package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable of the simulator. Values come from
// configs/config.yml with SIM_* environment overrides on top.
type Config struct {
	// Server ports
	DevicePort   string `mapstructure:"device_port"`
	IdentityPort string `mapstructure:"identity_port"`
	ControlPort  string `mapstructure:"control_port"`

	// Physics parameters
	AmbientTemp     float64 `mapstructure:"ambient_temp"`
	HeatingRate     float64 `mapstructure:"heating_rate"` // degrees C per minute
	CoolingRate     float64 `mapstructure:"cooling_rate"` // degrees C per minute
	TempTolerance   float64 `mapstructure:"temp_tolerance"`
	TempOscillation float64 `mapstructure:"temp_oscillation"`

	// Timing
	TimeScale                float64 `mapstructure:"time_scale"`
	BroadcastIntervalIdle    float64 `mapstructure:"broadcast_interval_idle"`    // seconds
	BroadcastIntervalCooking float64 `mapstructure:"broadcast_interval_cooking"` // seconds

	// Device identity
	CookerID        string `mapstructure:"cooker_id"`
	DeviceType      string `mapstructure:"device_type"`
	FirmwareVersion string `mapstructure:"firmware_version"`

	// Authentication fixtures
	ValidTokens   []string          `mapstructure:"valid_tokens"`
	ExpiredTokens []string          `mapstructure:"expired_tokens"`
	Accounts      map[string]string `mapstructure:"accounts"` // email -> plaintext password, hashed at startup
	TokenExpiry   int               `mapstructure:"token_expiry"`

	// Validation bounds
	MinTempCelsius  float64 `mapstructure:"min_temp_celsius"`
	MaxTempCelsius  float64 `mapstructure:"max_temp_celsius"`
	MinTimerSeconds int     `mapstructure:"min_timer_seconds"`
	MaxTimerSeconds int     `mapstructure:"max_timer_seconds"`

	// Storage and logging
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`

	// Seed for the oscillation source; 0 means non-deterministic.
	PhysicsSeed int64 `mapstructure:"physics_seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device_port", "8765")
	v.SetDefault("identity_port", "8764")
	v.SetDefault("control_port", "8766")

	v.SetDefault("ambient_temp", 22.0)
	v.SetDefault("heating_rate", 1.0)
	v.SetDefault("cooling_rate", 0.5)
	v.SetDefault("temp_tolerance", 0.5)
	v.SetDefault("temp_oscillation", 0.2)

	v.SetDefault("time_scale", 1.0)
	v.SetDefault("broadcast_interval_idle", 30.0)
	v.SetDefault("broadcast_interval_cooking", 2.0)

	v.SetDefault("cooker_id", "anova sim-0000000000")
	v.SetDefault("device_type", "pro")
	v.SetDefault("firmware_version", "3.3.01")

	v.SetDefault("valid_tokens", []string{"valid-test-token"})
	v.SetDefault("expired_tokens", []string{"expired-test-token"})
	v.SetDefault("accounts", map[string]string{"test@example.com": "testpassword123"})
	v.SetDefault("token_expiry", 3600)

	v.SetDefault("min_temp_celsius", 40.0)
	v.SetDefault("max_temp_celsius", 100.0)
	v.SetDefault("min_timer_seconds", 60)
	v.SetDefault("max_timer_seconds", 359940)

	v.SetDefault("db_path", "simulator.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("physics_seed", 0)
}

// Load reads configs/config.yml (if present) and applies SIM_* environment
// overrides, e.g. SIM_TIME_SCALE=60 or SIM_DEVICE_PORT=9765.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath("configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TimeScale <= 0 {
		return fmt.Errorf("time_scale must be positive, got %v", c.TimeScale)
	}
	if c.MinTempCelsius >= c.MaxTempCelsius {
		return fmt.Errorf("temperature bounds inverted: min %v >= max %v", c.MinTempCelsius, c.MaxTempCelsius)
	}
	if c.MinTimerSeconds >= c.MaxTimerSeconds {
		return fmt.Errorf("timer bounds inverted: min %d >= max %d", c.MinTimerSeconds, c.MaxTimerSeconds)
	}
	return nil
}
