package optim

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/tensor"
)

const (
	maxLineSearch = 25    // Function evaluations allowed per line search
	curvatureEps  = 1e-10 // Pairs with y·s at or below this are not stored
)

// LineSearch selects how LBFGS picks the step length along a search direction.
type LineSearch int

// Supported line searches.
const (
	// LineSearchNone takes a fixed step of length LR.
	LineSearchNone LineSearch = iota
	// LineSearchStrongWolfe brackets and zooms on a step satisfying the strong
	// Wolfe conditions with constants C1 and C2.
	LineSearchStrongWolfe
)

var lineSearchNames = map[LineSearch]string{
	LineSearchNone:        "none",
	LineSearchStrongWolfe: "strong_wolfe",
}

func (ls LineSearch) String() string {
	if name, ok := lineSearchNames[ls]; ok {
		return name
	}
	return fmt.Sprintf("LineSearch(%d)", int(ls))
}

// MarshalText implements encoding.TextMarshaler.
func (ls LineSearch) MarshalText() ([]byte, error) {
	return []byte(ls.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ls *LineSearch) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range lineSearchNames {
		if v == name {
			*ls = k
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidHyperparameter, "unknown line search %q", string(text))
}

// LBFGSConfig holds hyperparameters for limited-memory BFGS.
//
// Each Step runs up to MaxIter quasi-Newton iterations and may call the
// closure up to MaxEval times (0 selects MaxIter*5/4).
type LBFGSConfig struct {
	LR              float64    `yaml:"lr"`
	MaxIter         int        `yaml:"max_iter"`
	MaxEval         int        `yaml:"max_eval"`
	HistorySize     int        `yaml:"history_size"`
	ToleranceGrad   float64    `yaml:"tolerance_grad"`   // Converged when max |g| is at or below this
	ToleranceChange float64    `yaml:"tolerance_change"` // Stop when loss or step changes less than this
	LineSearch      LineSearch `yaml:"line_search"`
	C1              float64    `yaml:"c1"` // Sufficient decrease constant
	C2              float64    `yaml:"c2"` // Curvature constant
}

// DefaultLBFGSConfig returns lr=1, 20 iterations per step and a history of 100
// pairs, without line search.
func DefaultLBFGSConfig() LBFGSConfig {
	return LBFGSConfig{
		LR:              1,
		MaxIter:         20,
		HistorySize:     100,
		ToleranceGrad:   1e-7,
		ToleranceChange: 1e-9,
		LineSearch:      LineSearchNone,
		C1:              1e-4,
		C2:              0.9,
	}
}

// Validate reports the first out-of-range hyperparameter.
func (c LBFGSConfig) Validate() error {
	if err := checkPositive("lr", c.LR); err != nil {
		return err
	}
	if c.MaxIter < 1 {
		return invalid("max_iter", float64(c.MaxIter), "must be at least 1")
	}
	if c.MaxEval < 0 {
		return invalid("max_eval", float64(c.MaxEval), "must be non-negative")
	}
	if c.HistorySize < 1 {
		return invalid("history_size", float64(c.HistorySize), "must be at least 1")
	}
	if err := checkNonNegative("tolerance_grad", c.ToleranceGrad); err != nil {
		return err
	}
	if err := checkNonNegative("tolerance_change", c.ToleranceChange); err != nil {
		return err
	}
	switch c.LineSearch {
	case LineSearchNone:
	case LineSearchStrongWolfe:
		if !(c.C1 > 0 && c.C1 < c.C2) {
			return invalid("c1", c.C1, "must satisfy 0 < c1 < c2")
		}
		if !(c.C2 < 1) {
			return invalid("c2", c.C2, "must satisfy c1 < c2 < 1")
		}
	default:
		return invalid("line_search", float64(c.LineSearch), "unknown line search")
	}
	return nil
}

func (c LBFGSConfig) maxEval() int {
	if c.MaxEval > 0 {
		return c.MaxEval
	}
	return c.MaxIter * 5 / 4
}

// Closure re-evaluates the model: it returns the loss at the current parameter
// values and stores each parameter's gradient with Parameter.SetGrad.
// A parameter left without a gradient counts as zero gradient.
type Closure func() (float64, error)

// LBFGSResult summarizes one LBFGS Step.
type LBFGSResult struct {
	Loss        float64 // Last loss evaluated
	Iterations  int     // Quasi-Newton iterations performed
	Evaluations int     // Closure calls
	Converged   bool    // The gradient fell to ToleranceGrad
}

// correction is one (s, y) curvature pair.
type correction struct {
	s, y []float64
	rho  float64 // 1 / y·s
}

// LBFGS is a limited-memory BFGS optimizer over all its parameters, viewed as
// one flat vector.
//
// Unlike Optimizer it needs to re-evaluate the loss, so Step takes a closure.
type LBFGS struct {
	params  []*nn.Parameter
	offsets []int // Start of each parameter in the flat vector
	cfg     LBFGSConfig
	opts    options

	history  []correction
	dir      []float64
	grad     []float64
	prevGrad []float64
	x0       []float64
	stepLen  float64
	hDiag    float64
	iters    int
	evals    int
}

// NewLBFGS creates an L-BFGS optimizer. Parameters are validated as for New.
func NewLBFGS(params []*nn.Parameter, config LBFGSConfig, opts ...Option) (*LBFGS, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, invalid("params", 0, "optimizer got an empty parameter list")
	}

	seen := newParamSet()
	offsets := make([]int, len(params))
	n := 0
	for i, param := range params {
		if err := seen.add(param, i); err != nil {
			return nil, err
		}
		offsets[i] = n
		n += param.Tensor().NumElements()
	}

	l := &LBFGS{
		params:   append([]*nn.Parameter(nil), params...),
		offsets:  offsets,
		cfg:      config,
		opts:     newOptions(opts),
		dir:      make([]float64, n),
		grad:     make([]float64, n),
		prevGrad: make([]float64, n),
		x0:       make([]float64, n),
		hDiag:    1,
	}
	l.opts.logger.Debug("optimizer created",
		zap.String("kind", "lbfgs"),
		zap.Int("params", len(params)),
		zap.Int("elements", n),
	)
	return l, nil
}

// Step runs up to MaxIter iterations, calling closure for every evaluation.
//
// On error the parameters may hold a trial point of the line search.
func (l *LBFGS) Step(closure Closure) (LBFGSResult, error) {
	if closure == nil {
		return LBFGSResult{}, errors.Wrap(ErrUnsupportedOperation, "lbfgs step needs a closure")
	}

	loss, err := l.evaluate(closure, l.grad)
	if err != nil {
		return LBFGSResult{}, err
	}
	res := LBFGSResult{Loss: loss, Evaluations: 1}
	if floats.Norm(l.grad, math.Inf(1)) <= l.cfg.ToleranceGrad {
		res.Converged = true
		l.evals += res.Evaluations
		return res, nil
	}

	maxEval := l.cfg.maxEval()
	for res.Iterations < l.cfg.MaxIter {
		res.Iterations++
		l.iters++

		l.updateDirection()
		copy(l.prevGrad, l.grad)
		prevLoss := loss

		t := l.cfg.LR
		if l.iters == 1 {
			t = math.Min(1, 1/floats.Norm(l.grad, 1)) * l.cfg.LR
		}
		gtd := floats.Dot(l.grad, l.dir)
		if gtd > -l.cfg.ToleranceChange {
			// Not a descent direction; no step was taken.
			l.stepLen = 0
			break
		}

		evals := 0
		switch l.cfg.LineSearch {
		case LineSearchStrongWolfe:
			l.readParams(l.x0)
			loss, t, evals, err = l.strongWolfe(closure, t, loss, gtd)
			if err != nil {
				return res, err
			}
			l.writeParams(l.x0, t, l.dir)
		default:
			l.readParams(l.x0)
			l.writeParams(l.x0, t, l.dir)
			if res.Iterations != l.cfg.MaxIter {
				if loss, err = l.evaluate(closure, l.grad); err != nil {
					return res, err
				}
				evals = 1
			}
		}
		l.stepLen = t
		res.Evaluations += evals
		res.Loss = loss

		if res.Iterations == l.cfg.MaxIter || res.Evaluations >= maxEval {
			break
		}
		if floats.Norm(l.grad, math.Inf(1)) <= l.cfg.ToleranceGrad {
			res.Converged = true
			break
		}
		if floats.Norm(l.dir, math.Inf(1))*math.Abs(t) <= l.cfg.ToleranceChange {
			break
		}
		if math.Abs(loss-prevLoss) < l.cfg.ToleranceChange {
			break
		}
	}

	l.evals += res.Evaluations
	l.opts.logger.Debug("lbfgs step",
		zap.Float64("loss", res.Loss),
		zap.Int("iterations", res.Iterations),
		zap.Int("evaluations", res.Evaluations),
		zap.Int("history", len(l.history)),
		zap.Bool("converged", res.Converged),
	)
	return res, nil
}

// updateDirection stores the newest curvature pair and computes the search
// direction with the two-loop recursion.
func (l *LBFGS) updateDirection() {
	if l.iters == 1 {
		floats.ScaleTo(l.dir, -1, l.grad)
		l.hDiag = 1
		l.history = l.history[:0]
		return
	}

	y := make([]float64, len(l.grad))
	floats.SubTo(y, l.grad, l.prevGrad)
	s := make([]float64, len(l.dir))
	floats.ScaleTo(s, l.stepLen, l.dir)
	if ys := floats.Dot(y, s); ys > curvatureEps {
		if len(l.history) == l.cfg.HistorySize {
			copy(l.history, l.history[1:])
			l.history = l.history[:len(l.history)-1]
		}
		l.history = append(l.history, correction{s: s, y: y, rho: 1 / ys})
		l.hDiag = ys / floats.Dot(y, y)
	}

	q := l.dir
	floats.ScaleTo(q, -1, l.grad)
	alpha := make([]float64, len(l.history))
	for i := len(l.history) - 1; i >= 0; i-- {
		c := l.history[i]
		alpha[i] = c.rho * floats.Dot(c.s, q)
		floats.AddScaled(q, -alpha[i], c.y)
	}
	floats.Scale(l.hDiag, q)
	for i, c := range l.history {
		beta := c.rho * floats.Dot(c.y, q)
		floats.AddScaled(q, alpha[i]-beta, c.s)
	}
}

// strongWolfe searches along l.dir from l.x0, where the loss is f and the
// directional derivative gtd. It returns the accepted loss and step length and
// leaves the accepted gradient in l.grad.
func (l *LBFGS) strongWolfe(closure Closure, t, f, gtd float64) (float64, float64, int, error) {
	c1, c2, tol := l.cfg.C1, l.cfg.C2, l.cfg.ToleranceChange
	dNorm := floats.Norm(l.dir, math.Inf(1))

	eval := func(t float64) (float64, []float64, float64, error) {
		l.writeParams(l.x0, t, l.dir)
		g := make([]float64, len(l.grad))
		loss, err := l.evaluate(closure, g)
		return loss, g, floats.Dot(g, l.dir), err
	}

	g := append([]float64(nil), l.grad...)
	fNew, gNew, gtdNew, err := eval(t)
	if err != nil {
		return 0, 0, 0, err
	}
	evals := 1
	tPrev, fPrev, gPrev, gtdPrev := 0.0, f, g, gtd

	var (
		bracket, bracketF, bracketGtd [2]float64
		bracketG                      [2][]float64
		width                         int
		done                          bool
	)
	iter := 0
	for ; iter < maxLineSearch; iter++ {
		if fNew > f+c1*t*gtd || (iter > 1 && fNew >= fPrev) {
			bracket, bracketF, bracketG, bracketGtd = [2]float64{tPrev, t}, [2]float64{fPrev, fNew},
				[2][]float64{gPrev, gNew}, [2]float64{gtdPrev, gtdNew}
			width = 2
			break
		}
		if math.Abs(gtdNew) <= -c2*gtd {
			bracket[0], bracketF[0], bracketG[0] = t, fNew, gNew
			width = 1
			done = true
			break
		}
		if gtdNew >= 0 {
			bracket, bracketF, bracketG, bracketGtd = [2]float64{tPrev, t}, [2]float64{fPrev, fNew},
				[2][]float64{gPrev, gNew}, [2]float64{gtdPrev, gtdNew}
			width = 2
			break
		}

		// Extrapolate.
		minStep := t + 0.01*(t-tPrev)
		maxStep := t * 10
		next := cubicInterpolate(tPrev, fPrev, gtdPrev, t, fNew, gtdNew, minStep, maxStep)
		tPrev, fPrev, gPrev, gtdPrev = t, fNew, gNew, gtdNew
		t = next
		if fNew, gNew, gtdNew, err = eval(t); err != nil {
			return 0, 0, 0, err
		}
		evals++
	}
	if iter == maxLineSearch {
		bracket, bracketF, bracketG, bracketGtd = [2]float64{0, t}, [2]float64{f, fNew},
			[2][]float64{g, gNew}, [2]float64{gtd, gtdNew}
		width = 2
	}

	// Zoom.
	low, high := 0, 1
	if bracketF[0] > bracketF[width-1] {
		low, high = 1, 0
	}
	insufficient := false
	for !done && iter < maxLineSearch {
		if math.Abs(bracket[1]-bracket[0])*dNorm < tol {
			break
		}
		lo, hi := math.Min(bracket[0], bracket[1]), math.Max(bracket[0], bracket[1])
		t = cubicInterpolate(bracket[0], bracketF[0], bracketGtd[0], bracket[1], bracketF[1], bracketGtd[1], lo, hi)

		// Keep t away from the bracket ends unless progress stalls.
		eps := 0.1 * (hi - lo)
		if math.Min(hi-t, t-lo) < eps {
			if insufficient || t >= hi || t <= lo {
				if math.Abs(t-hi) < math.Abs(t-lo) {
					t = hi - eps
				} else {
					t = lo + eps
				}
				insufficient = false
			} else {
				insufficient = true
			}
		} else {
			insufficient = false
		}

		if fNew, gNew, gtdNew, err = eval(t); err != nil {
			return 0, 0, 0, err
		}
		evals++
		iter++

		if fNew > f+c1*t*gtd || fNew >= bracketF[low] {
			bracket[high], bracketF[high], bracketG[high], bracketGtd[high] = t, fNew, gNew, gtdNew
			if bracketF[0] <= bracketF[1] {
				low, high = 0, 1
			} else {
				low, high = 1, 0
			}
			continue
		}
		if math.Abs(gtdNew) <= -c2*gtd {
			done = true
		} else if gtdNew*(bracket[high]-bracket[low]) >= 0 {
			bracket[high], bracketF[high], bracketG[high], bracketGtd[high] =
				bracket[low], bracketF[low], bracketG[low], bracketGtd[low]
		}
		bracket[low], bracketF[low], bracketG[low], bracketGtd[low] = t, fNew, gNew, gtdNew
	}

	copy(l.grad, bracketG[low])
	return bracketF[low], bracket[low], evals, nil
}

// cubicInterpolate returns the minimizer of the cubic through (x1, f1) and
// (x2, f2) with slopes g1 and g2, clamped to [lo, hi].
func cubicInterpolate(x1, f1, g1, x2, f2, g2, lo, hi float64) float64 {
	d1 := g1 + g2 - 3*(f1-f2)/(x1-x2)
	d2Square := d1*d1 - g1*g2
	if d2Square < 0 {
		return (lo + hi) / 2
	}
	d2 := math.Sqrt(d2Square)
	var minPos float64
	if x1 <= x2 {
		minPos = x2 - (x2-x1)*((g2+d2-d1)/(g2-g1+2*d2))
	} else {
		minPos = x1 - (x1-x2)*((g1+d2-d1)/(g1-g2+2*d2))
	}
	return math.Min(math.Max(minPos, lo), hi)
}

// evaluate calls closure and gathers the flat gradient into grad.
func (l *LBFGS) evaluate(closure Closure, grad []float64) (float64, error) {
	loss, err := closure()
	if err != nil {
		return 0, errors.Wrap(err, "lbfgs closure")
	}
	for i, param := range l.params {
		seg := grad[l.offsets[i] : l.offsets[i]+param.Tensor().NumElements()]
		g := param.Grad()
		if g == nil {
			clear(seg)
			continue
		}
		if err := checkGradient(param, g, l.opts.nonFinite); err != nil {
			return 0, errors.WithStack(&ParameterError{Index: i, Name: param.Name(), Err: err})
		}
		readFloat64(seg, g)
	}
	return loss, nil
}

// readParams copies the parameter values into the flat vector dst.
func (l *LBFGS) readParams(dst []float64) {
	for i, param := range l.params {
		readFloat64(dst[l.offsets[i]:], param.Tensor())
	}
}

// writeParams sets the parameters to x + t*d.
func (l *LBFGS) writeParams(x []float64, t float64, d []float64) {
	for i, param := range l.params {
		p := param.Tensor()
		off := l.offsets[i]
		switch p.DType() {
		case tensor.Float32:
			data := p.AsFloat32()
			for j := range data {
				data[j] = float32(x[off+j] + t*d[off+j])
			}
		case tensor.Float64:
			floats.AddScaledTo(p.AsFloat64(), x[off:off+p.NumElements()], t, d[off:off+p.NumElements()])
		}
	}
}

func readFloat64(dst []float64, r *tensor.RawTensor) {
	switch r.DType() {
	case tensor.Float32:
		for i, v := range r.AsFloat32() {
			dst[i] = float64(v)
		}
	case tensor.Float64:
		copy(dst, r.AsFloat64())
	}
}

// GetLR returns the learning rate.
func (l *LBFGS) GetLR() float64 {
	return l.cfg.LR
}

// SetLR sets the learning rate used for the step length.
func (l *LBFGS) SetLR(lr float64) {
	l.cfg.LR = lr
}

// Config returns the current configuration.
func (l *LBFGS) Config() LBFGSConfig {
	return l.cfg
}

// Iterations returns the total number of iterations across all Steps.
func (l *LBFGS) Iterations() int {
	return l.iters
}

// Evaluations returns the total number of closure calls across all Steps.
func (l *LBFGS) Evaluations() int {
	return l.evals
}

// HistoryLen returns the number of stored curvature pairs.
func (l *LBFGS) HistoryLen() int {
	return len(l.history)
}

// Parameters returns the optimized parameters in order.
func (l *LBFGS) Parameters() []*nn.Parameter {
	return append([]*nn.Parameter(nil), l.params...)
}

// ZeroGrad clears the gradient slot of every parameter.
func (l *LBFGS) ZeroGrad() {
	for _, param := range l.params {
		param.ZeroGrad()
	}
}
