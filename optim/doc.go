// Package optim is a box-constrained gradient-descent optimizer.
//
// The objective is a plain Go function that returns the value at x and,
// when grad is non-nil, fills in the gradient:
//
//	fn := func(x, grad []float64, _ any) float64 {
//	    if grad != nil {
//	        grad[0] = 2 * x[0]
//	    }
//	    return x[0] * x[0]
//	}
//
//	x := []float64{1}
//	ok := optim.GD(x, fn, nil)
//
// Settings select one of eight update rules (basic, momentum, Nesterov,
// AdaGrad, RMSProp, Adam/AdaMax, Nadam/NadaMax and AdaDelta), optional
// gradient clipping and step decay. With ValsBound set, each coordinate is
// kept strictly inside [LowerBounds[i], UpperBounds[i]] by optimizing in a
// transformed, unconstrained space; an infinite entry leaves that side open.
//
//	s := optim.DefaultSettings()
//	s.GD.Method = optim.Adam
//	s.ValsBound = true
//	s.LowerBounds = []float64{0}
//	s.UpperBounds = []float64{math.Inf(1)}
//	ok, err := optim.GDWithSettings(x, fn, nil, &s)
//
// A run that stops without meeting GradErrTol is a failure; FailurePolicy
// chooses whether that is only reported, logged, leaves x untouched or is
// returned as an error wrapping ErrNotConverged.
package optim
