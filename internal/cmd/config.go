package cmd

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "bootphase"

// config holds the defaults of command line flags, read from BOOTPHASE_* environment variables.
type config struct {
	Plan       string        `envconfig:"PLAN"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"5m"`
	MetricsOut string        `envconfig:"METRICS_OUT"`
}

func loadConfig() (*config, error) {
	c := new(config)
	if err := envconfig.Process(envPrefix, c); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	return c, nil
}
