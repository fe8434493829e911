package opt

import "log/slog"

// TraceRecord is emitted once before the first step (Iteration 0) and once
// after every step. Vectors are in working space and are only valid for the
// duration of the Observe call.
type TraceRecord struct {
	Iteration int       `json:"iteration"`
	GradNorm  float64   `json:"gradNorm"`
	RelChange float64   `json:"relChange"`
	X         []float64 `json:"x,omitempty"`
	Step      []float64 `json:"step,omitempty"`
	Grad      []float64 `json:"grad,omitempty"`
	M         []float64 `json:"m,omitempty"`
	V         []float64 `json:"v,omitempty"`
}

// Observer consumes per-iteration trace records. Observers must not modify
// the record's slices.
type Observer interface {
	Observe(rec TraceRecord)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(rec TraceRecord)

func (f ObserverFunc) Observe(rec TraceRecord) { f(rec) }

type nopObserver struct{}

func (nopObserver) Observe(TraceRecord) {}

// LogObserver writes trace records to a slog logger. Level 1 logs the
// iteration summary, 2 adds x and the step, 3 adds the gradient and 4 adds
// the accumulators.
type LogObserver struct {
	Logger *slog.Logger
	Level  int
}

func (o *LogObserver) Observe(rec TraceRecord) {
	if o.Level <= 0 {
		return
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"iteration", rec.Iteration,
		"grad_norm", rec.GradNorm,
		"rel_change", rec.RelChange,
	}
	if o.Level >= 2 {
		attrs = append(attrs, "x", rec.X, "step", rec.Step)
	}
	if o.Level >= 3 {
		attrs = append(attrs, "grad", rec.Grad)
	}
	if o.Level >= 4 {
		attrs = append(attrs, "m", rec.M, "v", rec.V)
	}
	logger.Info("gd iteration", attrs...)
}

// MultiObserver fans a record out to several observers
type MultiObserver []Observer

func (m MultiObserver) Observe(rec TraceRecord) {
	for _, o := range m {
		o.Observe(rec)
	}
}

func (s *Settings) observer() Observer {
	var obs MultiObserver
	if s.Observer != nil {
		obs = append(obs, s.Observer)
	}
	if s.PrintLevel > 0 {
		obs = append(obs, &LogObserver{Level: s.PrintLevel})
	}
	switch len(obs) {
	case 0:
		return nopObserver{}
	case 1:
		return obs[0]
	default:
		return obs
	}
}
