package opt

import (
	"log/slog"
	"math"
)

// relChangeFloor keeps the relative change finite at zero coordinates
const relChangeFloor = 1e-8

// MonitorConfig holds the stopping criteria of a run
type MonitorConfig struct {
	IterMax         int
	GradErrTol      float64
	RelSolChangeTol float64
}

// Monitor tracks the stopping criteria across iterations.
// It starts in Running and moves to GradientConverged, SolutionStalled
// or IterationLimit, after which it no longer changes.
type Monitor struct {
	config    MonitorConfig
	status    Status
	iter      int
	gradNorm  float64
	relChange float64
}

// NewMonitor creates a monitor for one run
func NewMonitor(config MonitorConfig) *Monitor {
	return &Monitor{
		config:    config,
		status:    Running,
		gradNorm:  math.Inf(1),
		relChange: 1,
	}
}

// Start records the gradient norm at the initial point
func (m *Monitor) Start(gradNorm float64) Status {
	m.gradNorm = gradNorm
	switch {
	case gradNorm <= m.config.GradErrTol:
		m.status = GradientConverged
	case m.config.IterMax <= 0:
		m.status = IterationLimit
	}
	return m.status
}

// Update records one completed step from xOld to xNew with gradient norm
// gradNorm at xNew and returns the new status.
func (m *Monitor) Update(xOld, xNew []float64, gradNorm float64) Status {
	if m.status != Running {
		return m.status
	}

	m.iter++
	m.gradNorm = gradNorm
	m.relChange = RelativeChange(xOld, xNew)

	switch {
	case gradNorm <= m.config.GradErrTol:
		m.status = GradientConverged
	case m.relChange <= m.config.RelSolChangeTol:
		m.status = SolutionStalled
		slog.Debug("Relative solution change below tolerance",
			"iteration", m.iter,
			"rel_change", m.relChange,
			"tolerance", m.config.RelSolChangeTol,
		)
	case m.iter >= m.config.IterMax:
		m.status = IterationLimit
	}
	return m.status
}

// Fail marks the run as stopped by a non-finite gradient or trial point
func (m *Monitor) Fail(gradNorm float64) {
	m.gradNorm = gradNorm
	m.status = NonFiniteGradient
}

// Cancel marks the run as stopped from outside
func (m *Monitor) Cancel() {
	if m.status == Running {
		m.status = Cancelled
	}
}

// Running reports whether another iteration should be performed
func (m *Monitor) Running() bool {
	return m.status == Running
}

// Status returns the current state
func (m *Monitor) Status() Status {
	return m.status
}

// Iterations returns the number of completed steps
func (m *Monitor) Iterations() int {
	return m.iter
}

// GradNorm returns the last recorded gradient norm
func (m *Monitor) GradNorm() float64 {
	return m.gradNorm
}

// RelChange returns the last recorded relative solution change
func (m *Monitor) RelChange() float64 {
	return m.relChange
}

// RelativeChange returns sum_i |xNew_i - xOld_i| / (|xOld_i| + 1e-8)
func RelativeChange(xOld, xNew []float64) float64 {
	var sum float64
	for i := range xOld {
		sum += math.Abs(xNew[i]-xOld[i]) / (math.Abs(xOld[i]) + relChangeFloor)
	}
	return sum
}
