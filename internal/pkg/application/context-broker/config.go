package contextbroker

import (
	"io"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/jsonld"
	yaml "gopkg.in/yaml.v2"
)

type Tenant struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Seed is an optional file with temporal entities that are loaded into
	// the tenant at startup
	Seed string `yaml:"seed"`
}

type Config struct {
	Tenants  []Tenant        `yaml:"tenants"`
	Temporal temporal.Limits `yaml:"temporal"`
	JSONLD   jsonld.Config   `yaml:"jsonld"`
}

// Limits returns the configured limits, using the default value of every
// limit that was left out
func (c Config) Limits() temporal.Limits {
	limits := temporal.DefaultLimits()

	if c.Temporal.InstanceLimitDefault > 0 {
		limits.InstanceLimitDefault = c.Temporal.InstanceLimitDefault
	}
	if c.Temporal.InstanceLimitMax > 0 {
		limits.InstanceLimitMax = c.Temporal.InstanceLimitMax
	}
	if c.Temporal.EntityLimitDefault > 0 {
		limits.EntityLimitDefault = c.Temporal.EntityLimitDefault
	}
	if c.Temporal.EntityLimitMax > 0 {
		limits.EntityLimitMax = c.Temporal.EntityLimitMax
	}

	return limits
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)

	return cfg, err
}
