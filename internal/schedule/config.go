package schedule

import "fmt"

// Config selects and parameterizes a scheduler.
type Config struct {
	Name      string  `mapstructure:"name" yaml:"name"`             // constant, linear, exponential, cosine, noam
	LR        float64 `mapstructure:"lr" yaml:"lr"`                 // Initial or peak rate.
	FinalLR   float64 `mapstructure:"final_lr" yaml:"final_lr"`     // linear end, cosine floor.
	Gamma     float64 `mapstructure:"gamma" yaml:"gamma"`           // exponential decay factor.
	Warmup    int     `mapstructure:"warmup" yaml:"warmup"`         // cosine and noam warmup steps.
	NumIters  int     `mapstructure:"num_iters" yaml:"num_iters"`   // linear and cosine length.
	ModelSize int     `mapstructure:"model_size" yaml:"model_size"` // noam model dimension.
}

// FromConfig builds the scheduler described by cfg. numIters is used when
// cfg.NumIters is zero, typically the total number of training iterations.
func FromConfig(cfg Config, numIters int) (LRScheduler, error) {
	if cfg.NumIters == 0 {
		cfg.NumIters = max(numIters, 1)
	}
	switch cfg.Name {
	case "", "constant":
		return Constant{LR: cfg.LR}, nil
	case "linear":
		return NewLinear(cfg.LR, cfg.FinalLR, cfg.NumIters)
	case "exponential":
		return NewExponential(cfg.LR, cfg.Gamma)
	case "cosine":
		return NewCosine(cfg.LR, cfg.FinalLR, cfg.Warmup, cfg.NumIters)
	case "noam":
		return NewNoam(cfg.LR, cfg.ModelSize, cfg.Warmup)
	default:
		return nil, fmt.Errorf("schedule: unknown scheduler %q", cfg.Name)
	}
}
