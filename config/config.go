// prismflow/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	BaseURL          string        `mapstructure:"BASE"`
	UploadDir        string        `mapstructure:"UPLOAD_DIR"`
	MaxUploadSize    int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
	UploadLifetime   time.Duration `mapstructure:"UPLOAD_LIFETIME"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFormat        string        `mapstructure:"LOG_FORMAT"`

	// Simulation.
	TickInterval  time.Duration `mapstructure:"TICK_INTERVAL"`
	TaskRetention time.Duration `mapstructure:"TASK_RETENTION"`
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	StepsMin      int           `mapstructure:"STEPS_MIN"`
	StepsMax      int           `mapstructure:"STEPS_MAX"`
	SubstepsMin   int           `mapstructure:"SUBSTEPS_MIN"`
	SubstepsMax   int           `mapstructure:"SUBSTEPS_MAX"`
	SpeedMin      float64       `mapstructure:"SPEED_MIN"`
	SpeedMax      float64       `mapstructure:"SPEED_MAX"`
	IncrementMin  float64       `mapstructure:"INCREMENT_MIN"`
	IncrementMax  float64       `mapstructure:"INCREMENT_MAX"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:             "3001",
		UploadDir:        "uploads",
		MaxUploadSize:    500 * 1024 * 1024,
		ThrottleFreeDisk: 200 * 1024 * 1024,
		CORSOrigins:      []string{"*"},
		LogLevel:         "info",
		LogFormat:        "text",
		TickInterval:     500 * time.Millisecond,
		TaskRetention:    time.Hour,
		SweepInterval:    5 * time.Minute,
		StepsMin:         500,
		StepsMax:         700,
		SubstepsMin:      20,
		SubstepsMax:      35,
		SpeedMin:         0.2,
		SpeedMax:         1.0,
		IncrementMin:     0.3,
		IncrementMax:     1.8,
	}
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

// Load reads the configuration from defaults, an optional YAML file and
// PRISMFLOW_ prefixed environment variables, in increasing precedence.
// An empty file searches the default locations.
func Load(file string) (*Config, error) {
	vp := viper.New()

	vp.SetDefault("PORT", "3001")
	vp.SetDefault("BASE", "")
	vp.SetDefault("UPLOAD_DIR", "uploads")
	vp.SetDefault("MAX_UPLOAD_SIZE", "500MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("UPLOAD_LIFETIME", "0s")
	vp.SetDefault("CORS_ORIGINS", "*")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_FORMAT", "text")
	vp.SetDefault("TICK_INTERVAL", "500ms")
	vp.SetDefault("TASK_RETENTION", "1h")
	vp.SetDefault("SWEEP_INTERVAL", "5m")
	vp.SetDefault("STEPS_MIN", 500)
	vp.SetDefault("STEPS_MAX", 700)
	vp.SetDefault("SUBSTEPS_MIN", 20)
	vp.SetDefault("SUBSTEPS_MAX", 35)
	vp.SetDefault("SPEED_MIN", 0.2)
	vp.SetDefault("SPEED_MAX", 1.0)
	vp.SetDefault("INCREMENT_MIN", 0.3)
	vp.SetDefault("INCREMENT_MAX", 1.8)

	if file != "" {
		vp.SetConfigFile(file)
		if err := vp.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		vp.SetConfigName("prismflow_config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("/etc/prismflow/")

		if err := vp.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	vp.SetEnvPrefix("PRISMFLOW")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
