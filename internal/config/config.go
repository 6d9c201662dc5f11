// Package config loads trainer settings from a file, BORN_ environment
// variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/schedule"
)

// EnvPrefix prefixes every environment override, e.g. BORN_OPTIMIZER_NAME.
const EnvPrefix = "BORN"

// Datasets understood by the CLI.
const (
	DatasetSynthetic = "synthetic"
	DatasetText      = "text"
)

// Config is the full trainer configuration.
type Config struct {
	Epochs           int              `mapstructure:"epochs" yaml:"epochs"`
	GradAccumulation int              `mapstructure:"grad_accumulation" yaml:"grad_accumulation"`
	Devices          int              `mapstructure:"devices" yaml:"devices"` // 0 uses one per logical CPU.
	Optimizer        optim.Config     `mapstructure:"optimizer" yaml:"optimizer"`
	Scheduler        schedule.Config  `mapstructure:"scheduler" yaml:"scheduler"`
	Data             DataConfig       `mapstructure:"data" yaml:"data"`
	Log              LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics          MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Checkpoint       CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Trace            TraceConfig      `mapstructure:"trace" yaml:"trace"`
}

// DataConfig describes the training data.
type DataConfig struct {
	Dataset       string  `mapstructure:"dataset" yaml:"dataset"`
	TextFile      string  `mapstructure:"text_file" yaml:"text_file"`
	Encoding      string  `mapstructure:"encoding" yaml:"encoding"`
	Window        int     `mapstructure:"window" yaml:"window"`
	Vocab         int     `mapstructure:"vocab" yaml:"vocab"`
	BatchSize     int     `mapstructure:"batch_size" yaml:"batch_size"`
	Samples       int     `mapstructure:"samples" yaml:"samples"`
	Features      int     `mapstructure:"features" yaml:"features"`
	Noise         float32 `mapstructure:"noise" yaml:"noise"`
	ValidFraction float64 `mapstructure:"valid_fraction" yaml:"valid_fraction"`
	Seed          int64   `mapstructure:"seed" yaml:"seed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MetricsConfig configures metric reporting.
type MetricsConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"` // Empty disables the Prometheus endpoint.
	LogEvery int    `mapstructure:"log_every" yaml:"log_every"`
}

// CheckpointConfig configures saving and resuming.
type CheckpointConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`       // Empty disables saving.
	Resume string `mapstructure:"resume" yaml:"resume"` // Checkpoint file to resume from.
}

// TraceConfig configures OpenTelemetry tracing of the training epochs.
type TraceConfig struct {
	File string `mapstructure:"file" yaml:"file"` // Span output as JSON lines. Empty disables tracing.
}

var defaults = map[string]any{
	"epochs":                 1,
	"grad_accumulation":      0,
	"devices":                1,
	"optimizer.name":         "sgd",
	"optimizer.momentum":     0.0,
	"optimizer.betas":        []float32{0.9, 0.999},
	"optimizer.eps":          1e-8,
	"optimizer.weight_decay": 0.0,
	"scheduler.name":         "constant",
	"scheduler.lr":           0.05,
	"scheduler.final_lr":     0.0,
	"scheduler.gamma":        0.0,
	"scheduler.warmup":       0,
	"scheduler.num_iters":    0,
	"scheduler.model_size":   0,
	"data.dataset":           DatasetSynthetic,
	"data.text_file":         "",
	"data.encoding":          "cl100k_base",
	"data.window":            32,
	"data.vocab":             512,
	"data.batch_size":        16,
	"data.samples":           1024,
	"data.features":          4,
	"data.noise":             0.01,
	"data.valid_fraction":    0.1,
	"data.seed":              42,
	"log.level":              "info",
	"log.development":        false,
	"metrics.addr":           "",
	"metrics.log_every":      10,
	"checkpoint.dir":         "",
	"checkpoint.resume":      "",
	"trace.file":             "",
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"epochs":            "epochs",
	"grad-accumulation": "grad_accumulation",
	"devices":           "devices",
	"optimizer":         "optimizer.name",
	"scheduler":         "scheduler.name",
	"lr":                "scheduler.lr",
	"dataset":           "data.dataset",
	"text-file":         "data.text_file",
	"batch-size":        "data.batch_size",
	"seed":              "data.seed",
	"log-level":         "log.level",
	"metrics-addr":      "metrics.addr",
	"checkpoint-dir":    "checkpoint.dir",
	"resume":            "checkpoint.resume",
	"trace-file":        "trace.file",
}

// Load reads the configuration. path may be empty to skip the file; flags
// may be nil. Changed flags override the environment, which overrides the
// file, which overrides the defaults.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Epochs < 1 {
		errs = append(errs, fmt.Errorf("epochs must be at least 1, got %d", c.Epochs))
	}
	if c.GradAccumulation < 0 {
		errs = append(errs, fmt.Errorf("grad_accumulation must not be negative, got %d", c.GradAccumulation))
	}
	if c.Devices < 0 {
		errs = append(errs, fmt.Errorf("devices must not be negative, got %d", c.Devices))
	}
	if c.Data.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("data.batch_size must be at least 1, got %d", c.Data.BatchSize))
	}
	if c.Data.ValidFraction < 0 || c.Data.ValidFraction >= 1 {
		errs = append(errs, fmt.Errorf("data.valid_fraction must be in [0, 1), got %g", c.Data.ValidFraction))
	}
	switch c.Data.Dataset {
	case DatasetSynthetic:
		if c.Data.Samples < 1 || c.Data.Features < 1 {
			errs = append(errs, errors.New("data.samples and data.features must be positive"))
		}
	case DatasetText:
		if c.Data.TextFile == "" {
			errs = append(errs, errors.New("data.text_file is required for the text dataset"))
		}
		if c.Data.Window < 1 || c.Data.Vocab < 2 {
			errs = append(errs, errors.New("data.window must be positive and data.vocab at least 2"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data.dataset %q", c.Data.Dataset))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// YAML renders the configuration.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	return out, nil
}
