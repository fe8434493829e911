package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// StepInput carries everything an update rule may read for one iteration
type StepInput struct {
	X        []float64 // current position, working space
	Grad     []float64 // gradient at X
	GradPrev []float64 // gradient at the previous position
	PrevStep []float64 // step applied in the previous iteration
	Iter     int       // 1-based iteration number
	StepSize float64   // learning rate after any decay
}

// UpdateRule computes the step subtracted from the current position.
// Rules that keep accumulators own them and update them in place.
type UpdateRule interface {
	Step(in StepInput) []float64
	// Accumulators returns the first and second moment state; either may
	// be nil for rules that do not keep it.
	Accumulators() (m, v []float64)
}

// NewUpdateRule builds the rule selected by cfg for an n-dimensional run.
// eval is only used by rules that evaluate look-ahead gradients.
func NewUpdateRule(cfg GDSettings, n int, eval func(x, grad []float64) float64) UpdateRule {
	switch cfg.Method {
	case Momentum:
		return &momentumRule{mu: cfg.Momentum}
	case Nesterov:
		return &nesterovRule{mu: cfg.Momentum, eval: eval, look: make([]float64, n), grad: make([]float64, n)}
	case AdaGrad:
		return &adaGradRule{eps: cfg.NormTerm, v: make([]float64, n)}
	case RMSProp:
		return &rmsPropRule{rho: cfg.AdaRho, eps: cfg.NormTerm, v: make([]float64, n)}
	case Adam:
		return &adamRule{beta1: cfg.Beta1, beta2: cfg.Beta2, eps: cfg.NormTerm, max: cfg.AdaMax, m: make([]float64, n), v: make([]float64, n)}
	case Nadam:
		return &nadamRule{beta1: cfg.Beta1, beta2: cfg.Beta2, eps: cfg.NormTerm, max: cfg.AdaMax, m: make([]float64, n), v: make([]float64, n)}
	case AdaDelta:
		return &adaDeltaRule{rho: cfg.AdaRho, eps: cfg.NormTerm, m: make([]float64, n), v: make([]float64, n)}
	default:
		return basicRule{}
	}
}

// basicRule: d = η g
type basicRule struct{}

func (basicRule) Step(in StepInput) []float64 {
	d := make([]float64, len(in.Grad))
	floats.ScaleTo(d, in.StepSize, in.Grad)
	return d
}

func (basicRule) Accumulators() (m, v []float64) { return nil, nil }

// momentumRule: d = μ d_prev + η g
type momentumRule struct {
	mu float64
}

func (r *momentumRule) Step(in StepInput) []float64 {
	d := make([]float64, len(in.Grad))
	floats.ScaleTo(d, r.mu, in.PrevStep)
	floats.AddScaled(d, in.StepSize, in.Grad)
	return d
}

func (r *momentumRule) Accumulators() (m, v []float64) { return nil, nil }

// nesterovRule is momentum with the gradient taken at x - μ d_prev
type nesterovRule struct {
	mu   float64
	eval func(x, grad []float64) float64
	look []float64
	grad []float64
}

func (r *nesterovRule) Step(in StepInput) []float64 {
	floats.AddScaledTo(r.look, in.X, -r.mu, in.PrevStep)
	r.eval(r.look, r.grad)

	d := make([]float64, len(in.Grad))
	floats.ScaleTo(d, r.mu, in.PrevStep)
	floats.AddScaled(d, in.StepSize, r.grad)
	return d
}

func (r *nesterovRule) Accumulators() (m, v []float64) { return nil, nil }

// adaGradRule: v += g², d = η g / (√v + ε)
type adaGradRule struct {
	eps float64
	v   []float64
}

func (r *adaGradRule) Step(in StepInput) []float64 {
	d := make([]float64, len(in.Grad))
	for i, g := range in.Grad {
		r.v[i] += g * g
		d[i] = in.StepSize * g / (math.Sqrt(r.v[i]) + r.eps)
	}
	return d
}

func (r *adaGradRule) Accumulators() (m, v []float64) { return nil, r.v }

// rmsPropRule: v = ρ v + (1-ρ) g², d = η g / (√v + ε)
type rmsPropRule struct {
	rho float64
	eps float64
	v   []float64
}

func (r *rmsPropRule) Step(in StepInput) []float64 {
	d := make([]float64, len(in.Grad))
	for i, g := range in.Grad {
		r.v[i] = r.rho*r.v[i] + (1-r.rho)*g*g
		d[i] = in.StepSize * g / (math.Sqrt(r.v[i]) + r.eps)
	}
	return d
}

func (r *rmsPropRule) Accumulators() (m, v []float64) { return nil, r.v }

// adamRule implements Adam, or AdaMax when max is set
type adamRule struct {
	beta1, beta2 float64
	eps          float64
	max          bool
	m, v         []float64
}

func (r *adamRule) Step(in StepInput) []float64 {
	t := float64(in.Iter)
	bias1 := 1 - math.Pow(r.beta1, t)
	updateFirstMoment(r.m, in.Grad, r.beta1)

	d := make([]float64, len(in.Grad))
	if r.max {
		updateInfNorm(r.v, in.Grad, r.beta2)
		lr := in.StepSize / bias1
		for i := range d {
			d[i] = lr * r.m[i] / (r.v[i] + r.eps)
		}
		return d
	}

	updateSecondMoment(r.v, in.Grad, r.beta2)
	lr := in.StepSize * math.Sqrt(1-math.Pow(r.beta2, t)) / bias1
	for i := range d {
		d[i] = lr * r.m[i] / (math.Sqrt(r.v[i]) + r.eps)
	}
	return d
}

func (r *adamRule) Accumulators() (m, v []float64) { return r.m, r.v }

// nadamRule implements Nesterov-accelerated Adam, or NadaMax when max is set
type nadamRule struct {
	beta1, beta2 float64
	eps          float64
	max          bool
	m, v         []float64
}

func (r *nadamRule) Step(in StepInput) []float64 {
	t := float64(in.Iter)
	bias1 := 1 - math.Pow(r.beta1, t)
	bias2 := 1 - math.Pow(r.beta2, t)
	updateFirstMoment(r.m, in.Grad, r.beta1)
	if r.max {
		updateInfNorm(r.v, in.Grad, r.beta2)
	} else {
		updateSecondMoment(r.v, in.Grad, r.beta2)
	}

	d := make([]float64, len(in.Grad))
	for i, g := range in.Grad {
		mHat := r.m[i] / bias1
		num := r.beta1*mHat + (1-r.beta1)*g/bias1
		var den float64
		if r.max {
			den = r.v[i] + r.eps
		} else {
			den = math.Sqrt(r.v[i]/bias2) + r.eps
		}
		d[i] = in.StepSize * num / den
	}
	return d
}

func (r *nadamRule) Accumulators() (m, v []float64) { return r.m, r.v }

// adaDeltaRule keeps v as the running mean of g² and m as the running mean
// of squared steps; the step size is not used.
type adaDeltaRule struct {
	rho  float64
	eps  float64
	m, v []float64
}

func (r *adaDeltaRule) Step(in StepInput) []float64 {
	d := make([]float64, len(in.Grad))
	for i, g := range in.Grad {
		r.v[i] = r.rho*r.v[i] + (1-r.rho)*g*g
		d[i] = g * math.Sqrt(r.m[i]+r.eps) / math.Sqrt(r.v[i]+r.eps)
		r.m[i] = r.rho*r.m[i] + (1-r.rho)*d[i]*d[i]
	}
	return d
}

func (r *adaDeltaRule) Accumulators() (m, v []float64) { return r.m, r.v }

func updateFirstMoment(m, g []float64, beta float64) {
	floats.Scale(beta, m)
	floats.AddScaled(m, 1-beta, g)
}

func updateSecondMoment(v, g []float64, beta float64) {
	for i, gi := range g {
		v[i] = beta*v[i] + (1-beta)*gi*gi
	}
}

func updateInfNorm(v, g []float64, beta float64) {
	for i, gi := range g {
		v[i] = math.Max(beta*v[i], math.Abs(gi))
	}
}

// stepSchedule applies optional step-size decay without touching settings
type stepSchedule struct {
	size    float64
	decay   bool
	periods int
	factor  float64
}

func newStepSchedule(cfg GDSettings) *stepSchedule {
	return &stepSchedule{
		size:    cfg.StepSize,
		decay:   cfg.StepDecay,
		periods: cfg.StepDecayPeriods,
		factor:  cfg.StepDecayValue,
	}
}

// At advances to the 1-based iteration iter and returns its step size.
// It must be called once per iteration.
func (s *stepSchedule) At(iter int) float64 {
	if s.decay && s.periods > 0 && iter%s.periods == 0 {
		s.size *= s.factor
	}
	return s.size
}
