package compute

import (
	"fmt"
	"sync"
	"time"

	vk "github.com/goki/vulkan"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultTileSize is the work-group edge length used when none is given.
const DefaultTileSize = 16

// Options configure an Engine.
type Options struct {
	// MatrixSize is N; every multiply is N x N by N x N.
	MatrixSize int
	// TileSize is the work-group edge length. N must be a multiple of it.
	TileSize int

	// ShaderCode is compiled SPIR-V. When empty ShaderPath is read instead.
	ShaderCode []uint32
	ShaderPath string

	InstanceExtensions []string
	DeviceExtensions   []string
	ValidationLayers   []string
	DebugNames         bool
	Sync               SyncMode
}

func (o Options) tile() int {
	if o.TileSize == 0 {
		return DefaultTileSize
	}
	return o.TileSize
}

// Validate checks the options that do not depend on the device.
func (o Options) Validate() error {
	n, tile := o.MatrixSize, o.tile()
	if n <= 0 {
		return newErrorf(KindContractViolation, "validate options", "matrix size must be positive, got %d", n)
	}
	if tile <= 0 {
		return newErrorf(KindContractViolation, "validate options", "tile size must be positive, got %d", tile)
	}
	if n%tile != 0 {
		return newErrorf(KindContractViolation, "validate options", "matrix size %d is not a multiple of tile size %d", n, tile)
	}
	if uint64(n)*uint64(n)*float32Size > uint64(^uint32(0)) {
		return newErrorf(KindContractViolation, "validate options", "matrix size %d is too large", n)
	}
	if len(o.ShaderCode) == 0 && o.ShaderPath == "" {
		return newError(KindContractViolation, "validate options", fmt.Errorf("%w: no shader path or code given", ErrShaderLoad))
	}
	return nil
}

// Result is the product of one multiply.
type Result struct {
	// C is the N x N product, row-major.
	C []float32
	// GPUTime is the device time between the timestamps around the dispatch.
	GPUTime time.Duration
}

// Stats reports the per-invocation objects still allocated from the
// engine's pools. Both are zero between invocations.
type Stats struct {
	CommandBuffers int
	DescriptorSets int
}

// Engine multiplies N x N float32 matrices on a Vulkan device. It owns
// every device object it creates. Calls are serialized; one invocation is
// in flight at a time.
type Engine struct {
	mu     sync.Mutex
	log    *zap.Logger
	n      uint32
	tile   uint32
	grid   [3]uint32
	closed bool

	dc       *DeviceContext
	a, b, c  *Buffer
	pipeline *Pipeline
	cmds     *commandPool
	disp     *dispatcher

	// rel holds the teardown of every long-lived object in acquisition order.
	rel releaser
}

// New creates the device context, the operand buffers A, B and C, the
// pipeline and the pools. On failure everything created so far is
// destroyed.
func New(opts Options, log *zap.Logger) (e *Engine, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	code := opts.ShaderCode
	if len(code) == 0 {
		log.Info("loading shader", zap.String("path", opts.ShaderPath))
		if code, err = LoadShader(opts.ShaderPath); err != nil {
			return nil, err
		}
	}

	e = &Engine{
		log:  log,
		n:    uint32(opts.MatrixSize),
		tile: uint32(opts.tile()),
	}
	defer e.rel.releaseOnError(&err)

	e.dc, err = newDeviceContext(DeviceOptions{
		AppName:            "vkmatmul",
		InstanceExtensions: opts.InstanceExtensions,
		DeviceExtensions:   opts.DeviceExtensions,
		ValidationLayers:   opts.ValidationLayers,
		DebugNames:         opts.DebugNames,
	}, &e.rel, log)
	if err != nil {
		return nil, err
	}

	if err := e.checkLimits(); err != nil {
		return nil, err
	}

	size := uint64(e.n) * uint64(e.n) * float32Size
	usage := UsageStorage | UsageTransferSrc | UsageTransferDst
	for _, op := range []struct {
		name string
		dst  **Buffer
	}{{"A", &e.a}, {"B", &e.b}, {"C", &e.c}} {
		buf, err := e.dc.CreateBuffer(size, usage, MemoryDeviceLocal, "matrix "+op.name)
		if err != nil {
			return nil, err
		}
		e.rel.pushVoid("buffer "+op.name, buf.Destroy)
		*op.dst = buf
	}

	if e.pipeline, err = createPipeline(e.dc, code, e.tile, &e.rel); err != nil {
		return nil, err
	}
	if e.cmds, err = newCommandPool(e.dc, opts.Sync, &e.rel); err != nil {
		return nil, err
	}
	if e.disp, err = newDispatcher(e.dc, e.pipeline, &e.rel); err != nil {
		return nil, err
	}

	log.Info("compute engine ready",
		zap.String("device", e.dc.Name),
		zap.Uint32("n", e.n),
		zap.Uint32("tile", e.tile),
		zap.Uint32s("grid", e.grid[:]),
		zap.Stringer("sync", opts.Sync))
	return e, nil
}

// checkLimits validates the tile and grid against the device once, so the
// dispatch-time assertion can never fire for a constructed engine.
func (e *Engine) checkLimits() error {
	lim := e.dc.Limits
	if lim.MaxComputeWorkGroupInvocations != 0 && e.tile*e.tile > lim.MaxComputeWorkGroupInvocations {
		return newErrorf(KindContractViolation, "check device limits",
			"tile %dx%d exceeds %d invocations per work group", e.tile, e.tile, lim.MaxComputeWorkGroupInvocations)
	}
	for i := 0; i < 2; i++ {
		if lim.MaxComputeWorkGroupSize[i] != 0 && e.tile > lim.MaxComputeWorkGroupSize[i] {
			return newErrorf(KindContractViolation, "check device limits",
				"tile %d exceeds work group size limit %d", e.tile, lim.MaxComputeWorkGroupSize[i])
		}
	}
	size := uint64(e.n) * uint64(e.n) * float32Size
	if lim.MaxStorageBufferRange != 0 && size > uint64(lim.MaxStorageBufferRange) {
		return newErrorf(KindContractViolation, "check device limits",
			"%d byte operand exceeds storage buffer range %d", size, lim.MaxStorageBufferRange)
	}
	grid, err := DispatchGrid(e.n, e.tile, lim.MaxComputeWorkGroupCount)
	if err != nil {
		return newError(KindContractViolation, "check device limits", err)
	}
	e.grid = grid
	return nil
}

// N returns the matrix dimension fixed at construction.
func (e *Engine) N() int { return int(e.n) }

// TileSize returns the work-group edge length baked into the pipeline.
func (e *Engine) TileSize() int { return int(e.tile) }

// DeviceName returns the name of the selected physical device.
func (e *Engine) DeviceName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dc.Name
}

// Limits returns the cached limits of the selected device.
func (e *Engine) Limits() DeviceLimits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dc.Limits
}

// Buffers returns the operand buffers A, B and C. All three are nil once
// the engine is closed.
func (e *Engine) Buffers() (a, b, c *Buffer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.a, e.b, e.c
}

// owns reports whether buf is one of the operand buffers.
func (e *Engine) owns(buf *Buffer) bool {
	return buf != nil && (buf == e.a || buf == e.b || buf == e.c)
}

// Stats returns the pool occupancy.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Stats{}
	}
	return Stats{CommandBuffers: e.cmds.outstanding, DescriptorSets: e.disp.setsInUse}
}

// Multiply computes a x b. Both inputs must hold N*N row-major values.
// The call uploads A and B, dispatches, waits and downloads C; nothing
// from the invocation survives it.
func (e *Engine) Multiply(a, b []float32) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Result{}, newError(KindContractViolation, "multiply", ErrClosed)
	}
	want := int(e.n) * int(e.n)
	if len(a) != want || len(b) != want {
		return Result{}, newErrorf(KindContractViolation, "multiply",
			"operands have %d and %d elements, want %d", len(a), len(b), want)
	}

	if err := e.upload(e.a, a); err != nil {
		return Result{}, err
	}
	if err := e.upload(e.b, b); err != nil {
		return Result{}, err
	}

	gpuTime, err := e.dispatch()
	if err != nil {
		return Result{}, err
	}

	out := make([]float32, want)
	if err := e.download(e.c, out); err != nil {
		return Result{}, err
	}
	e.log.Debug("multiply complete", zap.Duration("gpu_time", gpuTime))
	return Result{C: out, GPUTime: gpuTime}, nil
}

// dispatch records, submits and waits for the multiply itself, then reads
// the timestamps. The command buffer and descriptor set are released on
// every path.
func (e *Engine) dispatch() (gpuTime time.Duration, err error) {
	var inv releaser
	defer func() { err = multierr.Append(err, inv.release()) }()

	cb, err := e.cmds.begin("dispatch")
	if err != nil {
		return 0, err
	}
	inv.push("command buffer", func() error { return e.cmds.retire(cb) })

	set, err := e.disp.allocateSet(e.a, e.b, e.c)
	if err != nil {
		return 0, err
	}
	inv.push("descriptor set", func() error {
		if e.cmds.pending != nil {
			return nil
		}
		return e.disp.resetSets()
	})

	e.disp.record(cb, set, e.n, e.grid)
	if err := e.cmds.submit(cb); err != nil {
		return 0, err
	}
	return e.disp.elapsed()
}

// Close waits for the device to go idle and destroys every object in
// reverse creation order: query pool, descriptor pool, command pool,
// pipeline, pipeline layout, descriptor set layout, buffers C, B and A,
// device and instance. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if ret := vk.DeviceWaitIdle(e.dc.device); ret != vk.Success {
		err = resultError(KindCommandExecution, "wait device idle", ret)
	}
	e.log.Info("releasing compute engine", zap.Int("objects", e.rel.len()))
	err = multierr.Append(err, e.rel.release())
	e.a, e.b, e.c = nil, nil, nil
	e.pipeline, e.cmds, e.disp = nil, nil, nil
	return err
}
