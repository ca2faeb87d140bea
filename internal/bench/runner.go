package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/config"
	"github.com/fxnlabs/vkmatmul/internal/matrix"
	"github.com/fxnlabs/vkmatmul/internal/metrics"
)

// ErrVerificationFailed is returned with the report when the product does
// not match the reference.
var ErrVerificationFailed = errors.New("verification failed")

// Verification results recorded in metrics and reports.
const (
	ResultPass    = "pass"
	ResultFail    = "fail"
	ResultSkipped = "skipped"
)

// Backend is what the runner multiplies on. *gpu.Manager satisfies it.
type Backend interface {
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)
	GetBackendType() string
	LastGPUTime() time.Duration
}

// Options configure a Runner.
type Options struct {
	N               int
	Iterations      int
	Seed            uint64
	Tolerance       float32
	Verify          string
	FreivaldsRounds int
}

// OptionsFromConfig combines the bench section with the engine's N.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		N:               cfg.Engine.MatrixSize,
		Iterations:      cfg.Bench.Iterations,
		Seed:            cfg.Bench.Seed,
		Tolerance:       cfg.Bench.Tolerance,
		Verify:          cfg.Bench.Verify,
		FreivaldsRounds: cfg.Bench.FreivaldsRounds,
	}
}

func (o Options) validate() error {
	if o.N <= 0 {
		return fmt.Errorf("matrix size must be positive, got %d", o.N)
	}
	if o.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", o.Iterations)
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative, got %g", o.Tolerance)
	}
	switch o.Verify {
	case config.VerifyReference, config.VerifyFloat64, config.VerifyNone:
	case config.VerifyFreivalds:
		if o.FreivaldsRounds <= 0 {
			return fmt.Errorf("freivalds rounds must be positive, got %d", o.FreivaldsRounds)
		}
	default:
		return fmt.Errorf("unknown verification mode %q", o.Verify)
	}
	return nil
}

// Iteration holds the timings of one multiply.
type Iteration struct {
	Wall time.Duration `json:"wall"`
	GPU  time.Duration `json:"gpu"`
}

// Report is the outcome of one benchmark run.
type Report struct {
	Backend    string      `json:"backend"`
	N          int         `json:"n"`
	Iterations []Iteration `json:"iterations"`
	// Reference is the CPU time of the reference multiply, zero unless
	// verifying against it.
	Reference time.Duration `json:"reference"`
	Verify    string        `json:"verify"`
	Result    string        `json:"result"`
	// MaxDiff is the largest cell deviation from the reference.
	MaxDiff float32 `json:"maxDiff"`
	// Float64Checked is set when the product was compared against the
	// float64 gonum reference, either by mode or because the float32
	// reference disagreed with it.
	Float64Checked bool `json:"float64Checked"`
	// Repeatable is true when every iteration returned bit-identical output.
	Repeatable bool     `json:"repeatable"`
	Digest     string   `json:"digest"`
	Samples    []Sample `json:"samples"`
}

// MeanWall is the average wall time per multiply.
func (r *Report) MeanWall() time.Duration {
	var total time.Duration
	for _, it := range r.Iterations {
		total += it.Wall
	}
	return mean(total, len(r.Iterations))
}

// MeanGPU is the average device time per multiply, zero when the backend
// does not measure it.
func (r *Report) MeanGPU() time.Duration {
	var total time.Duration
	for _, it := range r.Iterations {
		total += it.GPU
	}
	return mean(total, len(r.Iterations))
}

// GFLOPS is computed from the mean wall time.
func (r *Report) GFLOPS() float64 {
	return matrix.GFLOPS(r.N, r.MeanWall().Seconds())
}

func mean(total time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// Runner multiplies the same pair of random matrices Iterations times and
// verifies the product.
type Runner struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

func NewRunner(backend Backend, opts Options, logger *zap.Logger) (*Runner, error) {
	if backend == nil {
		return nil, errors.New("bench: nil backend")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("bench: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{backend: backend, opts: opts, logger: logger}, nil
}

// Run executes the benchmark. Cancellation is checked between multiplies;
// an invocation in progress always completes. A failed verification
// returns the report together with ErrVerificationFailed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	n := r.opts.N
	rng := rand.New(rand.NewPCG(r.opts.Seed, r.opts.Seed^0x9e3779b97f4a7c15))
	a := matrix.Random(n, rng)
	b := matrix.Random(n, rng)

	report := &Report{
		Backend:    r.backend.GetBackendType(),
		N:          n,
		Verify:     r.opts.Verify,
		Repeatable: true,
	}
	metrics.MultiplyMatrixSize.Set(float64(n))

	r.logger.Info("Starting benchmark",
		zap.String("backend", report.Backend),
		zap.Int("n", n),
		zap.Int("iterations", r.opts.Iterations),
		zap.Uint64("seed", r.opts.Seed))

	var first []float32
	for i := 0; i < r.opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := time.Now()
		c, err := r.backend.MatrixMultiply(a, b, n, n, n)
		wall := time.Since(start)
		if err != nil {
			r.logger.Error("Multiply failed", zap.Int("iteration", i), zap.Error(err))
			return report, fmt.Errorf("iteration %d: %w", i, err)
		}
		it := Iteration{Wall: wall, GPU: r.backend.LastGPUTime()}
		report.Iterations = append(report.Iterations, it)
		r.record(report.Backend, it)

		if first == nil {
			first = c
		} else if !matrix.Equal(first, c) {
			report.Repeatable = false
			r.logger.Warn("Result differs from the first iteration", zap.Int("iteration", i))
		}

		r.logger.Debug("Multiply completed",
			zap.Int("iteration", i),
			zap.Duration("wall", it.Wall),
			zap.Duration("gpu", it.GPU))
	}

	report.Digest = Digest(first)
	report.Samples = Samples(first, n, 5)
	metrics.MultiplyGFLOPS.Set(report.GFLOPS())

	if err := r.verify(report, a, b, first); err != nil {
		return report, err
	}

	r.logger.Info("Benchmark completed",
		zap.Duration("mean_wall", report.MeanWall()),
		zap.Duration("mean_gpu", report.MeanGPU()),
		zap.Float64("gflops", report.GFLOPS()),
		zap.String("verification", report.Result))
	return report, nil
}

func (r *Runner) record(backend string, it Iteration) {
	metrics.MultiplyBackend.WithLabelValues(backend).Inc()
	metrics.MultiplyDuration.WithLabelValues(metrics.ClockWall).Observe(milliseconds(it.Wall))
	if it.GPU > 0 {
		metrics.MultiplyDuration.WithLabelValues(metrics.ClockGPU).Observe(milliseconds(it.GPU))
	}
}

func (r *Runner) verify(report *Report, a, b, c []float32) error {
	n := r.opts.N
	switch r.opts.Verify {
	case config.VerifyReference:
		start := time.Now()
		ref := matrix.Multiply(a, b, n)
		report.Reference = time.Since(start)
		report.MaxDiff = matrix.MaxAbsDiff(ref, c)
		if report.MaxDiff > r.opts.Tolerance {
			// the float32 loop accumulates its own rounding error; the
			// float64 product decides
			r.logger.Warn("Product disagrees with the float32 reference, checking in float64",
				zap.Float32("max_diff", report.MaxDiff))
			report.MaxDiff = matrix.MaxAbsDiff(matrix.MultiplyGonum(a, b, n), c)
			report.Float64Checked = true
		}
		report.Result = passOrFail(report.MaxDiff <= r.opts.Tolerance)
	case config.VerifyFloat64:
		start := time.Now()
		ref := matrix.MultiplyGonum(a, b, n)
		report.Reference = time.Since(start)
		report.MaxDiff = matrix.MaxAbsDiff(ref, c)
		report.Float64Checked = true
		report.Result = passOrFail(report.MaxDiff <= r.opts.Tolerance)
	case config.VerifyFreivalds:
		rng := rand.New(rand.NewPCG(r.opts.Seed+1, r.opts.Seed))
		ok := FreivaldsVerify(a, b, c, n, r.opts.FreivaldsRounds, rng, r.opts.Tolerance)
		report.Result = passOrFail(ok)
	default:
		report.Result = ResultSkipped
	}

	metrics.MultiplyVerification.WithLabelValues(report.Result).Inc()
	if report.Result == ResultFail {
		r.logger.Error("Verification failed",
			zap.String("mode", r.opts.Verify),
			zap.Float32("max_diff", report.MaxDiff),
			zap.Float32("tolerance", r.opts.Tolerance))
		return ErrVerificationFailed
	}
	return nil
}

func passOrFail(ok bool) string {
	if ok {
		return ResultPass
	}
	return ResultFail
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
