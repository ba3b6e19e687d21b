package capture

import (
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
)

// Config is loaded from environment variables. Command line flags take
// precedence over it.
type Config struct {
	LogLevel string `env:"CAPWRITER_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"CAPWRITER_LOG_FILE"`

	SnapshotLength  int  `env:"CAPWRITER_SNAPLEN" envDefault:"65535"`
	MaxRetries      int  `env:"CAPWRITER_MAX_RETRIES" envDefault:"0"`
	ContinueOnError bool `env:"CAPWRITER_CONTINUE_ON_ERROR"`

	AwsRegion       string `env:"CAPWRITER_AWS_REGION"`
	AwsS3Bucket     string `env:"CAPWRITER_AWS_S3_BUCKET"`
	AwsS3Prefix     string `env:"CAPWRITER_AWS_S3_PREFIX"`
	AwsS3AddTimeKey bool   `env:"CAPWRITER_AWS_S3_ADD_TIME_KEY"`
}

// LoadConfig reads Config from environment variables.
func LoadConfig() (*Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return nil, errors.Wrap(err, "Fail to parse environment variables")
	}
	if config.SnapshotLength <= 0 {
		return nil, errors.Errorf("CAPWRITER_SNAPLEN must be positive: %d", config.SnapshotLength)
	}
	if config.MaxRetries < 0 {
		return nil, errors.Errorf("CAPWRITER_MAX_RETRIES must not be negative: %d", config.MaxRetries)
	}

	return &config, nil
}

// UploaderArguments returns S3 settings of the config.
func (x *Config) UploaderArguments() UploaderArguments {
	return UploaderArguments{
		AwsRegion:       x.AwsRegion,
		AwsS3Bucket:     x.AwsS3Bucket,
		AwsS3Prefix:     x.AwsS3Prefix,
		AwsS3AddTimeKey: x.AwsS3AddTimeKey,
	}
}
