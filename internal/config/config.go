package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pathing holds all configuration for the pathing engine and the simulator.
type Pathing struct {
	// Tiers
	MedResBlockSize int `yaml:"med_res_block_size"`
	LowResBlockSize int `yaml:"low_res_block_size"`

	// Search distances in squares. A tier is skipped when the straight
	// distance between start and goal exceeds its limit; the low tier has none.
	MaxResSearchDistance float32 `yaml:"max_res_search_distance"`
	MedResSearchDistance float32 `yaml:"med_res_search_distance"`

	// Node budgets per search
	MaxResNodeLimit int `yaml:"max_res_node_limit"`
	MedResNodeLimit int `yaml:"med_res_node_limit"`
	LowResNodeLimit int `yaml:"low_res_node_limit"`
	EdgeNodeLimit   int `yaml:"edge_node_limit"` // fine searches between block offsets

	// MaxRefinementDepth bounds recursive refinement per NextWaypoint call.
	MaxRefinementDepth int `yaml:"max_refinement_depth"`

	// Incremental recompute
	SquaresToUpdate  int     `yaml:"squares_to_update"`
	UpdateRate       float32 `yaml:"update_rate"`
	UpdateDelayTicks int     `yaml:"update_delay_ticks"`

	// Query cache
	CacheLifetimeTicks int `yaml:"cache_lifetime_ticks"`
	CacheMaxItems      int `yaml:"cache_max_items"`

	// Heat map
	HeatMapScale int `yaml:"heat_map_scale"`

	// Workers for precomputation; 0 means runtime.NumCPU().
	Workers int `yaml:"workers"`

	// Persistence: "file", "postgres" or "none".
	CacheStore string         `yaml:"cache_store"`
	CacheDir   string         `yaml:"cache_dir"`
	Database   DatabaseConfig `yaml:"database"`

	// Observability
	MetricsAddress string `yaml:"metrics_address"` // empty disables /metrics
	LogLevel       string `yaml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"` // 0 keeps the pgxpool default
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultPathing returns Pathing config with sensible defaults.
func DefaultPathing() Pathing {
	return Pathing{
		MedResBlockSize:      8,
		LowResBlockSize:      32,
		MaxResSearchDistance: 50,
		MedResSearchDistance: 200,
		MaxResNodeLimit:      16384,
		MedResNodeLimit:      8192,
		LowResNodeLimit:      8192,
		EdgeNodeLimit:        16384,
		MaxRefinementDepth:   4,
		SquaresToUpdate:      1000,
		UpdateRate:           0.007,
		UpdateDelayTicks:     15,
		CacheLifetimeTicks:   150,
		CacheMaxItems:        4096,
		HeatMapScale:         2,
		Workers:              0,
		CacheStore:           "file",
		CacheDir:             "cache/paths",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "pathgrid",
			Password: "pathgrid",
			DBName:   "pathgrid",
			SSLMode:  "disable",
			MaxConns: 4,
		},
		MetricsAddress: "",
		LogLevel:       "info",
	}
}

// Validate checks preconditions the engine cannot recover from.
func (p Pathing) Validate() error {
	var errs []error
	if p.MedResBlockSize <= 0 {
		errs = append(errs, fmt.Errorf("med_res_block_size must be positive, got %d", p.MedResBlockSize))
	}
	if p.LowResBlockSize <= 0 {
		errs = append(errs, fmt.Errorf("low_res_block_size must be positive, got %d", p.LowResBlockSize))
	}
	if p.MedResBlockSize > 0 && p.LowResBlockSize > 0 && p.LowResBlockSize < p.MedResBlockSize {
		errs = append(errs, fmt.Errorf("low_res_block_size %d smaller than med_res_block_size %d",
			p.LowResBlockSize, p.MedResBlockSize))
	}
	if p.MaxResSearchDistance <= 0 || p.MedResSearchDistance < p.MaxResSearchDistance {
		errs = append(errs, fmt.Errorf("search distances must satisfy 0 < max_res (%v) <= med_res (%v)",
			p.MaxResSearchDistance, p.MedResSearchDistance))
	}
	if p.MaxResNodeLimit <= 0 || p.MedResNodeLimit <= 0 || p.LowResNodeLimit <= 0 || p.EdgeNodeLimit <= 0 {
		errs = append(errs, errors.New("node limits must be positive"))
	}
	if p.MaxRefinementDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_refinement_depth must be positive, got %d", p.MaxRefinementDepth))
	}
	if p.CacheLifetimeTicks <= 0 || p.CacheMaxItems <= 0 {
		errs = append(errs, errors.New("cache lifetime and size must be positive"))
	}
	switch p.CacheStore {
	case "file", "postgres", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown cache_store %q", p.CacheStore))
	}
	return errors.Join(errs...)
}

// LoadPathing loads pathing config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadPathing(path string) (Pathing, error) {
	cfg := DefaultPathing()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}
