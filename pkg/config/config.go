// Package config loads gridloom configuration from a YAML file and
// GRIDLOOM_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (GRIDLOOM_*)
//  2. Config file (gridloom.yaml)
//  3. Built-in defaults
//
// Environment variables:
//   - GRIDLOOM_BACKEND_MODE="embedded" or "remote"
//   - GRIDLOOM_DATA_DIR="./data"
//   - GRIDLOOM_ENDPOINT="https://api.example.com/graphql"
//   - GRIDLOOM_PAGE_SIZE=50
//   - GRIDLOOM_CHUNK_SIZE=100
//   - GRIDLOOM_INFINITE=true
//   - GRIDLOOM_LOG_LEVEL="INFO"
//
// Table declarations (columns and relations for the embedded backend) come
// from the config file only.
package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gridloom/gridloom/pkg/schema"
)

// Config is the root configuration.
type Config struct {
	Grid    GridConfig    `yaml:"grid"`
	Window  WindowConfig  `yaml:"window"`
	Backend BackendConfig `yaml:"backend"`
	Logging LoggingConfig `yaml:"logging"`
	Tables  []TableConfig `yaml:"tables" validate:"dive"`
}

// GridConfig controls rendering behavior.
type GridConfig struct {
	// RelationDisplayCount caps related-record labels per bubble cell.
	RelationDisplayCount int `yaml:"relation_display_count" validate:"gte=1,lte=16"`
}

// WindowConfig controls the data window.
type WindowConfig struct {
	// PageSize is the paginated-mode page length.
	PageSize int `yaml:"page_size" validate:"gte=1,lte=1000"`
	// ChunkSize is the infinite-mode fetch chunk length.
	ChunkSize int `yaml:"chunk_size" validate:"gte=1,lte=5000"`
	// Infinite selects the infinite-scroll strategy.
	Infinite bool `yaml:"infinite"`
}

// BackendConfig selects and configures the row backend.
type BackendConfig struct {
	// Mode is "embedded" (badger store) or "remote" (GraphQL endpoint).
	Mode string `yaml:"mode" validate:"oneof=embedded remote"`
	// DataDir is the embedded store's directory; empty means in-memory.
	DataDir string `yaml:"data_dir"`
	// Endpoint is the remote GraphQL URL; required in remote mode.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// levelRank orders log levels from most to least verbose.
var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Enables reports whether messages at the given level pass the configured
// threshold.
func (l LoggingConfig) Enables(level string) bool {
	return levelRank[level] >= levelRank[l.Level]
}

// TableConfig declares one table for the embedded backend.
type TableConfig struct {
	Key       string           `yaml:"key" validate:"required"`
	Columns   []ColumnConfig   `yaml:"columns" validate:"min=1,dive"`
	Relations []RelationConfig `yaml:"relations" validate:"dive"`
}

// ColumnConfig declares one column.
type ColumnConfig struct {
	Key           string `yaml:"key" validate:"required"`
	Type          string `yaml:"type" validate:"required"`
	Nullable      bool   `yaml:"nullable"`
	ServerManaged bool   `yaml:"server_managed"`
}

// RelationConfig declares one relation descriptor.
type RelationConfig struct {
	Field         string   `yaml:"field" validate:"required"`
	Kind          string   `yaml:"kind" validate:"oneof=belongsTo hasOne hasMany manyToMany"`
	TargetTable   string   `yaml:"target_table" validate:"required"`
	ForeignKeys   []string `yaml:"foreign_keys"`
	DisplayFields []string `yaml:"display_fields"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Grid:    GridConfig{RelationDisplayCount: 3},
		Window:  WindowConfig{PageSize: 50, ChunkSize: 100},
		Backend: BackendConfig{Mode: "embedded"},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// Load reads the config file (optional), applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.WithMessagef(err, "config: read %s", path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WithMessagef(err, "config: parse %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GRIDLOOM_BACKEND_MODE"); v != "" {
		c.Backend.Mode = v
	}
	if v := os.Getenv("GRIDLOOM_DATA_DIR"); v != "" {
		c.Backend.DataDir = v
	}
	if v := os.Getenv("GRIDLOOM_ENDPOINT"); v != "" {
		c.Backend.Endpoint = v
	}
	if v := os.Getenv("GRIDLOOM_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Window.PageSize = n
		}
	}
	if v := os.Getenv("GRIDLOOM_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Window.ChunkSize = n
		}
	}
	if v := os.Getenv("GRIDLOOM_INFINITE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Window.Infinite = b
		}
	}
	if v := os.Getenv("GRIDLOOM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration with struct tags plus the cross-field
// rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithMessage(err, "config: validation")
	}
	if c.Backend.Mode == "remote" && c.Backend.Endpoint == "" {
		return errors.New("config: remote mode requires an endpoint")
	}
	return nil
}

// TableMetas converts the declared tables into schema metadata.
func (c *Config) TableMetas() []*schema.TableMeta {
	metas := make([]*schema.TableMeta, 0, len(c.Tables))
	for _, tc := range c.Tables {
		meta := &schema.TableMeta{
			TableKey:    tc.Key,
			ColumnOrder: make([]string, 0, len(tc.Columns)),
			Fields:      make(map[string]schema.Field, len(tc.Columns)),
			Relations:   make(map[string]schema.Relation, len(tc.Relations)),
		}
		for _, col := range tc.Columns {
			meta.ColumnOrder = append(meta.ColumnOrder, col.Key)
			meta.Fields[col.Key] = schema.Field{
				Key:           col.Key,
				Type:          schema.FieldType(col.Type),
				Nullable:      col.Nullable,
				ServerManaged: col.ServerManaged,
			}
		}
		for _, rel := range tc.Relations {
			meta.Relations[rel.Field] = schema.Relation{
				Field:         rel.Field,
				Kind:          schema.RelationKind(rel.Kind),
				TargetTable:   rel.TargetTable,
				ForeignKeys:   rel.ForeignKeys,
				DisplayFields: rel.DisplayFields,
			}
		}
		metas = append(metas, meta)
	}
	return metas
}
