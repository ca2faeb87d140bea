package gpu

import (
	"fmt"
	"testing"

	"github.com/fxnlabs/vkmatmul/internal/compute"
	"github.com/fxnlabs/vkmatmul/shaders"
)

func benchmarkBackend(b *testing.B, backend GPUBackend, size int) {
	a := make([]float32, size*size)
	bb := make([]float32, size*size)
	for i := range a {
		a[i] = float32(i%100) / 100.0
		bb[i] = float32((i+1)%100) / 100.0
	}

	// Warm up
	_, _ = backend.MatrixMultiply(a, bb, size, size, size)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := backend.MatrixMultiply(a, bb, size, size, size); err != nil {
			b.Fatal(err)
		}
	}

	flops := int64(2 * size * size * size * b.N)
	b.ReportMetric(float64(flops)/b.Elapsed().Seconds()/1e9, "GFLOPS")
	b.ReportMetric(float64(size*size*4*3)/(1<<20), "MB") // A, B and C
	if tb, ok := backend.(TimedBackend); ok {
		b.ReportMetric(float64(tb.LastGPUTime().Microseconds()), "gpu-us")
	}
}

func BenchmarkVulkanBackend_MatrixMultiply(b *testing.B) {
	for _, size := range []int{64, 256, 512, 1024} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			backend := NewVulkanBackend(compute.Options{MatrixSize: size, ShaderPath: shaders.DefaultPath()}, nil)
			if !backend.IsAvailable() {
				b.Skip("Vulkan not available on this system")
			}
			if err := backend.Initialize(); err != nil {
				b.Skipf("Vulkan backend unavailable: %v", err)
			}
			defer backend.Cleanup()
			benchmarkBackend(b, backend, size)
		})
	}
}

func BenchmarkCPUBackend_MatrixMultiply(b *testing.B) {
	backend := NewCPUBackend(nil)
	_ = backend.Initialize()
	defer backend.Cleanup()

	// smaller sizes keep the CPU run reasonable
	for _, size := range []int{32, 64, 128, 256} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			benchmarkBackend(b, backend, size)
		})
	}
}
