package bench

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fxnlabs/vkmatmul/internal/config"
)

// Print writes a human-readable summary of the report.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "backend\t%s\n", r.Backend)
	fmt.Fprintf(tw, "matrix\t%dx%d\n", r.N, r.N)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "iteration\twall (ms)\tgpu (ms)")
	for i, it := range r.Iterations {
		fmt.Fprintf(tw, "%d\t%.3f\t%s\n", i, milliseconds(it.Wall), gpuColumn(it.GPU))
	}
	fmt.Fprintf(tw, "mean\t%.3f\t%s\n", milliseconds(r.MeanWall()), gpuColumn(r.MeanGPU()))
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "gflops\t%.2f\n", r.GFLOPS())
	if r.Reference > 0 {
		fmt.Fprintf(tw, "cpu reference (ms)\t%.3f\n", milliseconds(r.Reference))
	}
	fmt.Fprintf(tw, "verification\t%s (%s)\n", r.Result, r.Verify)
	if r.Verify == config.VerifyReference || r.Verify == config.VerifyFloat64 {
		fmt.Fprintf(tw, "max abs diff\t%g\n", r.MaxDiff)
	}
	if r.Float64Checked {
		fmt.Fprintln(tw, "float64 check\tgonum")
	}
	fmt.Fprintf(tw, "repeatable\t%t\n", r.Repeatable)
	fmt.Fprintf(tw, "digest\t%s\n", r.Digest)
	for _, s := range r.Samples {
		fmt.Fprintf(tw, "C[%d][%d]\t%g\n", s.Row, s.Col, s.Value)
	}
	return tw.Flush()
}

func gpuColumn(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", milliseconds(d))
}
