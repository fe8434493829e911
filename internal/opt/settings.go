package opt

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/cwbudde/boxgd/internal/bounds"
)

// ErrInvalidSettings is wrapped by every settings validation failure.
var ErrInvalidSettings = errors.New("invalid optimizer settings")

// Method selects the gradient-descent update rule
type Method int

const (
	Basic Method = iota
	Momentum
	Nesterov
	AdaGrad
	RMSProp
	Adam
	Nadam
	AdaDelta
)

var methodNames = map[Method]string{
	Basic:    "basic",
	Momentum: "momentum",
	Nesterov: "nesterov",
	AdaGrad:  "adagrad",
	RMSProp:  "rmsprop",
	Adam:     "adam",
	Nadam:    "nadam",
	AdaDelta: "adadelta",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod resolves a method name such as "adam" or "rmsprop"
func ParseMethod(name string) (Method, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown method %q", ErrInvalidSettings, name)
}

// FailurePolicy decides what happens when a run ends without convergence
type FailurePolicy int

const (
	// FailReturnFalse writes the final point back and reports false.
	FailReturnFalse FailurePolicy = iota
	// FailWarn behaves like FailReturnFalse and also logs a warning.
	FailWarn
	// FailKeepInitial leaves the caller's vector untouched on failure.
	FailKeepInitial
	// FailRaise surfaces the failure as a *ConvergenceError.
	FailRaise
)

var policyNames = map[FailurePolicy]string{
	FailReturnFalse: "return-false",
	FailWarn:        "warn",
	FailKeepInitial: "keep-initial",
	FailRaise:       "raise",
}

func (p FailurePolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("FailurePolicy(%d)", int(p))
}

// ParseFailurePolicy resolves a policy name such as "raise"
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidSettings, name)
}

// ClipType selects the magnitude measure used by gradient clipping
type ClipType int

const (
	// ClipNorm bounds the L-p norm, p = ClipSettings.NormType.
	ClipNorm ClipType = iota
	// ClipMaxNorm bounds the largest absolute coordinate.
	ClipMaxNorm
	// ClipMinNorm bounds the smallest absolute coordinate.
	ClipMinNorm
)

var clipNames = map[ClipType]string{
	ClipNorm:    "norm",
	ClipMaxNorm: "max",
	ClipMinNorm: "min",
}

func (c ClipType) String() string {
	if name, ok := clipNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ClipType(%d)", int(c))
}

// ParseClipType resolves a clip type name: "norm", "max" or "min"
func ParseClipType(name string) (ClipType, error) {
	for c, n := range clipNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown clip type %q", ErrInvalidSettings, name)
}

// ClipSettings configures gradient clipping
type ClipSettings struct {
	Enabled  bool     `mapstructure:"enabled"`
	Type     ClipType `mapstructure:"type"`
	NormType float64  `mapstructure:"norm_type"`
	Bound    float64  `mapstructure:"bound"`
}

// GDSettings holds the update-rule selector and its hyperparameters
type GDSettings struct {
	Method Method `mapstructure:"method"`

	StepSize         float64 `mapstructure:"step_size"`
	StepDecay        bool    `mapstructure:"step_decay"`
	StepDecayPeriods int     `mapstructure:"step_decay_periods"`
	StepDecayValue   float64 `mapstructure:"step_decay_value"`

	Momentum float64 `mapstructure:"momentum"`

	// NormTerm is added to every divisor derived from an accumulator.
	NormTerm float64 `mapstructure:"norm_term"`
	AdaRho   float64 `mapstructure:"ada_rho"`
	// AdaMax switches Adam and Nadam to an infinity-norm second moment.
	AdaMax bool    `mapstructure:"ada_max"`
	Beta1  float64 `mapstructure:"beta1"`
	Beta2  float64 `mapstructure:"beta2"`

	Clip ClipSettings `mapstructure:"clip"`
}

// Settings configures one optimization run. A run never mutates its settings.
type Settings struct {
	IterMax         int           `mapstructure:"iter_max"`
	GradErrTol      float64       `mapstructure:"grad_err_tol"`
	RelSolChangeTol float64       `mapstructure:"rel_sol_change_tol"`
	FailurePolicy   FailurePolicy `mapstructure:"failure_policy"`
	PrintLevel      int           `mapstructure:"print_level"`

	// ValsBound activates the box transform using LowerBounds/UpperBounds.
	// A non-finite entry leaves that side of the coordinate open.
	ValsBound   bool      `mapstructure:"vals_bound"`
	LowerBounds []float64 `mapstructure:"lower_bounds"`
	UpperBounds []float64 `mapstructure:"upper_bounds"`

	GD GDSettings `mapstructure:"gd"`

	// Observer receives one record per iteration; nil means none unless
	// PrintLevel asks for log output.
	Observer Observer `mapstructure:"-"`
}

// DefaultSettings returns the settings used by GD
func DefaultSettings() Settings {
	return Settings{
		IterMax:         2000,
		GradErrTol:      1e-8,
		RelSolChangeTol: 1e-14,
		FailurePolicy:   FailReturnFalse,
		GD: GDSettings{
			Method:           Basic,
			StepSize:         0.1,
			StepDecayPeriods: 10,
			StepDecayValue:   0.5,
			Momentum:         0.9,
			NormTerm:         1e-8,
			AdaRho:           0.9,
			Beta1:            0.9,
			Beta2:            0.999,
			Clip: ClipSettings{
				Type:     ClipNorm,
				NormType: 2,
				Bound:    5,
			},
		},
	}
}

// Validate checks the settings for a problem of dimension n and reports
// every violation at once.
func (s *Settings) Validate(n int) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if n <= 0 {
		add("dimension must be positive, got %d", n)
	}
	if s.IterMax < 0 {
		add("iter_max must be non-negative, got %d", s.IterMax)
	}
	if !(s.GradErrTol > 0) {
		add("grad_err_tol must be positive, got %g", s.GradErrTol)
	}
	if !(s.RelSolChangeTol > 0) {
		add("rel_sol_change_tol must be positive, got %g", s.RelSolChangeTol)
	}
	if _, ok := policyNames[s.FailurePolicy]; !ok {
		add("unknown failure policy %d", int(s.FailurePolicy))
	}
	if s.PrintLevel < 0 {
		add("print_level must be non-negative, got %d", s.PrintLevel)
	}

	if s.ValsBound {
		if len(s.LowerBounds) != n || len(s.UpperBounds) != n {
			add("bounds must have length %d, got lower=%d upper=%d", n, len(s.LowerBounds), len(s.UpperBounds))
		} else {
			for i := range s.LowerBounds {
				if math.IsNaN(s.LowerBounds[i]) || math.IsNaN(s.UpperBounds[i]) {
					add("bounds for coordinate %d contain NaN", i)
				} else if !(s.LowerBounds[i] < s.UpperBounds[i]) {
					add("coordinate %d: lower bound %g is not below upper bound %g", i, s.LowerBounds[i], s.UpperBounds[i])
				}
			}
		}
	}

	for _, err := range s.GD.validate() {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

func (g *GDSettings) validate() []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := methodNames[g.Method]; !ok {
		add("unknown gd method %d", int(g.Method))
	}
	if g.Method != AdaDelta && !(g.StepSize > 0) {
		add("step_size must be positive, got %g", g.StepSize)
	}
	if g.StepDecay {
		if g.StepDecayPeriods <= 0 {
			add("step_decay_periods must be positive, got %d", g.StepDecayPeriods)
		}
		if !(g.StepDecayValue > 0 && g.StepDecayValue <= 1) {
			add("step_decay_value must be in (0, 1], got %g", g.StepDecayValue)
		}
	}

	switch g.Method {
	case Momentum, Nesterov:
		if !(g.Momentum >= 0 && g.Momentum < 1) {
			add("momentum must be in [0, 1), got %g", g.Momentum)
		}
	case AdaGrad, RMSProp, Adam, Nadam, AdaDelta:
		if !(g.NormTerm > 0) {
			add("norm_term must be positive, got %g", g.NormTerm)
		}
	}
	switch g.Method {
	case RMSProp, AdaDelta:
		if !(g.AdaRho > 0 && g.AdaRho < 1) {
			add("ada_rho must be in (0, 1), got %g", g.AdaRho)
		}
	case Adam, Nadam:
		if !(g.Beta1 > 0 && g.Beta1 < 1) {
			add("beta1 must be in (0, 1), got %g", g.Beta1)
		}
		if !(g.Beta2 > 0 && g.Beta2 < 1) {
			add("beta2 must be in (0, 1), got %g", g.Beta2)
		}
	}

	if g.Clip.Enabled {
		if _, ok := clipNames[g.Clip.Type]; !ok {
			add("unknown clip type %d", int(g.Clip.Type))
		}
		if g.Clip.Type == ClipNorm && !(g.Clip.NormType > 0) {
			add("clip norm_type must be positive, got %g", g.Clip.NormType)
		}
		if !(g.Clip.Bound > 0) {
			add("clip bound must be positive, got %g", g.Clip.Bound)
		}
	}
	return errs
}

// box builds the bounds transformer, or nil when bounds are inactive
func (s *Settings) box() (*bounds.Box, error) {
	if !s.ValsBound {
		return nil, nil
	}
	box, err := bounds.NewBox(s.LowerBounds, s.UpperBounds)
	if err != nil {
		return nil, err
	}
	return box, box.Validate()
}
