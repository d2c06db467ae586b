package metadata

import (
	"fmt"

	"github.com/spf13/viper"
)

// Sidecar file layout:
//
//	model:
//	  tenant-context-key: tenant_id
//	tables:
//	  - schema: dbo
//	    table: Orders
//	    keys:
//	      tenant-filter: tenant_id
//	    columns:
//	      - column: created_at
//	        keys:
//	          populate: created-on
type fileDocument struct {
	Model  map[string]string `mapstructure:"model"`
	Tables []fileTable       `mapstructure:"tables"`
}

type fileTable struct {
	Schema  string            `mapstructure:"schema"`
	Table   string            `mapstructure:"table"`
	Keys    map[string]string `mapstructure:"keys"`
	Columns []fileColumn      `mapstructure:"columns"`
}

type fileColumn struct {
	Column string            `mapstructure:"column"`
	Keys   map[string]string `mapstructure:"keys"`
}

// LoadFile reads a sidecar metadata file (YAML, JSON, or TOML by extension).
func LoadFile(path string) (*Bundle, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading metadata file %s: %w", path, err)
	}

	var doc fileDocument
	if err := v.UnmarshalExact(&doc); err != nil {
		return nil, fmt.Errorf("parsing metadata file %s: %w", path, err)
	}

	b := NewBundle()
	for k, val := range doc.Model {
		b.SetModel(k, val)
	}
	for _, t := range doc.Tables {
		if t.Table == "" {
			return nil, fmt.Errorf("metadata file %s: tables entry without a table name", path)
		}
		for k, val := range t.Keys {
			b.SetTable(t.Schema, t.Table, k, val)
		}
		for _, c := range t.Columns {
			if c.Column == "" {
				return nil, fmt.Errorf("metadata file %s: table %s has a columns entry without a column name", path, t.Table)
			}
			for k, val := range c.Keys {
				b.SetColumn(t.Schema, t.Table, c.Column, k, val)
			}
		}
	}
	return b, nil
}
