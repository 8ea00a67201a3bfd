package liveruntime

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/function61/liveedit/pkg/livesync"
)

const (
	StateBackendFile = "file"
	StateBackendBolt = "bolt"
)

// everything comes from the Lambda environment. the platform sets the first three,
// the rest are set by whoever deploys the function.
type Config struct {
	TaskRoot     string        `env:"LAMBDA_TASK_ROOT"` // empty => not on Lambda
	Region       string        `env:"AWS_REGION"`
	FunctionName string        `env:"AWS_LAMBDA_FUNCTION_NAME"`
	Enabled      bool          `env:"LIVEEDIT_ENABLE"`
	Bucket       string        `env:"LIVEEDIT_BUCKET"`
	BucketRegion string        `env:"LIVEEDIT_BUCKET_REGION"` // defaults to Region
	OverlayRoot  string        `env:"LIVEEDIT_OVERLAY_ROOT" envDefault:"/tmp/.liveedit"`
	StateDir     string        `env:"LIVEEDIT_STATE_DIR" envDefault:"/tmp"`
	StateBackend string        `env:"LIVEEDIT_STATE_BACKEND" envDefault:"file"`
	FetchTimeout time.Duration `env:"LIVEEDIT_FETCH_TIMEOUT" envDefault:"10s"`
}

func ConfigFromEnv() (*Config, error) {
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (*Config, error) {
	conf := &Config{}
	if err := env.ParseWithOptions(conf, opts); err != nil {
		return nil, fmt.Errorf("liveruntime config: %w", err)
	}

	if conf.BucketRegion == "" {
		conf.BucketRegion = conf.Region
	}

	if conf.FetchTimeout <= 0 {
		conf.FetchTimeout = livesync.DefaultFetchTimeout
	}

	// when inactive we don't care about the rest being valid: we must behave as if
	// we didn't exist
	if !conf.Active() {
		return conf, nil
	}

	return conf, conf.validate()
}

// both the platform signal and the explicit opt-in are required
func (c *Config) Active() bool {
	return c.Enabled && c.TaskRoot != ""
}

func (c *Config) validate() error {
	switch {
	case c.Bucket == "":
		return errors.New("liveruntime config: LIVEEDIT_BUCKET not set")
	case c.Region == "" || c.FunctionName == "":
		return errors.New("liveruntime config: AWS_REGION and AWS_LAMBDA_FUNCTION_NAME required")
	case c.StateBackend != StateBackendFile && c.StateBackend != StateBackendBolt:
		return fmt.Errorf("liveruntime config: unsupported LIVEEDIT_STATE_BACKEND: %s", c.StateBackend)
	default:
		return nil
	}
}
