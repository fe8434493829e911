package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

// GD minimizes fn from the starting point x using DefaultSettings and
// writes the final point back into x.
func GD(x []float64, fn ObjectiveFunc, data any) bool {
	s := DefaultSettings()
	ok, _ := GDWithSettings(x, fn, data, &s)
	return ok
}

// GDWithSettings minimizes fn from x using s and writes the final point
// back into x, unless the run failed under FailKeepInitial. The error is
// non-nil for invalid settings, a non-finite starting point, or a failed
// run under FailRaise.
func GDWithSettings(x []float64, fn ObjectiveFunc, data any, s *Settings) (bool, error) {
	if s == nil {
		d := DefaultSettings()
		s = &d
	}

	res, err := Minimize(x, fn, data, s)
	if res == nil {
		return false, err
	}
	if res.Success || s.FailurePolicy != FailKeepInitial {
		copy(x, res.X)
	}
	return res.Success, err
}

// Minimize runs gradient descent from x0 and returns the full result.
// x0 is never modified. A nil settings pointer selects DefaultSettings.
func Minimize(x0 []float64, fn ObjectiveFunc, data any, settings *Settings) (*Result, error) {
	return MinimizeContext(context.Background(), x0, fn, data, settings)
}

// MinimizeContext is Minimize with cancellation. ctx is checked before
// every step; a cancelled run returns the last accepted point with status
// Cancelled together with ctx.Err(), and the failure policy is not applied.
func MinimizeContext(ctx context.Context, x0 []float64, fn ObjectiveFunc, data any, settings *Settings) (*Result, error) {
	s := DefaultSettings()
	if settings != nil {
		s = *settings
	}

	n := len(x0)
	if fn == nil {
		return nil, fmt.Errorf("%w: objective function is nil", ErrInvalidSettings)
	}
	if err := s.Validate(n); err != nil {
		return nil, err
	}

	if !allFinite(x0) {
		slog.Error("gd: non-finite initial value(s)", "x0", x0)
		return &Result{
			X:        append([]float64(nil), x0...),
			Value:    math.NaN(),
			GradNorm: math.NaN(),
			Status:   InvalidInput,
		}, ErrNonFiniteInput
	}

	box, err := s.box()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	obj := newBoxObjective(fn, data, box)

	start := append([]float64(nil), x0...)
	if box != nil {
		if moved := box.Interior(start); moved > 0 {
			slog.Warn("Initial point moved inside bounds", "coordinates", moved)
		}
	}

	r := &run{
		settings: &s,
		obj:      obj,
		observer: s.observer(),
		rule:     NewUpdateRule(s.GD, n, obj.Eval),
		schedule: newStepSchedule(s.GD),
		monitor: NewMonitor(MonitorConfig{
			IterMax:         s.IterMax,
			GradErrTol:      s.GradErrTol,
			RelSolChangeTol: s.RelSolChangeTol,
		}),
	}
	z := r.loop(ctx, obj.toWorking(start))

	res := &Result{
		Iterations: r.monitor.Iterations(),
		GradNorm:   r.monitor.GradNorm(),
		RelChange:  r.monitor.RelChange(),
		Status:     r.monitor.Status(),
	}
	if res.Iterations == 0 {
		res.X = start
	} else {
		res.X = obj.toCaller(z)
	}
	res.FuncEvals = obj.evals

	if res.Status == Cancelled {
		res.Value = fn(res.X, nil, data)
		res.FuncEvals++
		slog.Info("Optimization cancelled", "iterations", res.Iterations, "grad_norm", res.GradNorm)
		return res, ctx.Err()
	}
	return res, report(res, fn, data, &s)
}

// run holds the state owned by the driver for one call to Minimize
type run struct {
	settings *Settings
	obj      *boxObjective
	observer Observer
	rule     UpdateRule
	schedule *stepSchedule
	monitor  *Monitor
}

// loop iterates from the working-space point x until the monitor stops or
// ctx is cancelled and returns the last accepted point.
func (r *run) loop(ctx context.Context, x []float64) []float64 {
	n := len(x)
	d := make([]float64, n)
	grad := make([]float64, n)
	r.obj.Eval(x, grad)

	gradNorm := floats.Norm(grad, 2)
	if !allFinite(grad) {
		r.monitor.Fail(gradNorm)
	} else {
		r.monitor.Start(gradNorm)
	}
	r.trace(x, d, grad)

	gradPrev := grad
	for r.monitor.Running() {
		if ctx.Err() != nil {
			r.monitor.Cancel()
			break
		}
		iter := r.monitor.Iterations() + 1

		step := r.rule.Step(StepInput{
			X:        x,
			Grad:     grad,
			GradPrev: gradPrev,
			PrevStep: d,
			Iter:     iter,
			StepSize: r.schedule.At(iter),
		})

		xNew := make([]float64, n)
		floats.SubTo(xNew, x, step)

		gradNew := make([]float64, n)
		r.obj.Eval(xNew, gradNew)
		ClipGradient(gradNew, r.settings.GD.Clip)

		gradNorm = floats.Norm(gradNew, 2)
		if !allFinite(xNew) || !allFinite(gradNew) {
			slog.Warn("gd: non-finite trial point or gradient, stopping",
				"iteration", iter,
				"grad_norm", gradNorm,
			)
			r.monitor.Fail(r.monitor.GradNorm())
			break
		}

		r.monitor.Update(x, xNew, gradNorm)

		gradPrev, grad = grad, gradNew
		x, d = xNew, step

		r.trace(x, d, grad)
	}
	return x
}

func (r *run) trace(x, d, grad []float64) {
	m, v := r.rule.Accumulators()
	r.observer.Observe(TraceRecord{
		Iteration: r.monitor.Iterations(),
		GradNorm:  r.monitor.GradNorm(),
		RelChange: r.monitor.RelChange(),
		X:         x,
		Step:      d,
		Grad:      grad,
		M:         m,
		V:         v,
	})
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
