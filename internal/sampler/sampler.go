// Package sampler measures CPU, GPU and memory load at a fixed cadence and
// smooths the readings for display at any frame rate.
package sampler

import (
	"time"

	"go.uber.org/zap"

	"github.com/Dicklesworthstone/sysglance/internal/config"
	"github.com/Dicklesworthstone/sysglance/internal/gpu"
	"github.com/Dicklesworthstone/sysglance/internal/model"
)

// Sampler owns the hardware samplers and the displayed snapshot. It is not
// safe for concurrent use; call Update from the thread that renders.
type Sampler struct {
	log   *zap.Logger
	rate  float64
	sched Scheduler
	now   func() time.Time

	cpu *CPUSampler
	gpu *gpu.Sampler
	mem *MemorySampler

	targetCPU float64
	targetGPU float64
	targetRAM float64

	snap   model.Snapshot
	passes uint64
	closed bool
}

type options struct {
	cpuTimes CPUTimesFunc
	memStat  MemoryStatFunc
	openers  *gpu.Openers
	now      func() time.Time
}

// Option customizes the data sources of a Sampler.
type Option func(*options)

// WithCPUTimes replaces the OS CPU time reader.
func WithCPUTimes(fn CPUTimesFunc) Option { return func(o *options) { o.cpuTimes = fn } }

// WithMemoryStat replaces the OS memory status reader.
func WithMemoryStat(fn MemoryStatFunc) Option { return func(o *options) { o.memStat = fn } }

// WithGPUOpeners replaces the platform GPU backend openers.
func WithGPUOpeners(op gpu.Openers) Option { return func(o *options) { o.openers = &op } }

// WithClock sets the source of snapshot timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New probes the GPU backends and prepares the samplers. It does not fail:
// without any GPU backend the GPU readings stay at zero.
func New(cfg config.Config, log *zap.Logger, opts ...Option) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	openers := gpu.DefaultOpeners(gpu.OpenerConfig{
		EnableNVML:     cfg.EnableNVML,
		EnableADL:      cfg.EnableADL,
		EnableCounters: cfg.EnableCounters,
		NVMLPaths:      cfg.NVMLPaths,
		ADLPaths:       cfg.ADLPaths,
		SysRoot:        cfg.SysRoot,
	})
	if o.openers != nil {
		openers = *o.openers
	}

	s := &Sampler{
		log:   log,
		rate:  cfg.SmoothingRate,
		sched: Scheduler{Interval: cfg.Interval},
		now:   o.now,
		cpu:   NewCPUSampler(o.cpuTimes),
		gpu:   gpu.NewSampler(gpu.Probe(openers, log.Named("gpu")), log.Named("gpu")),
		mem:   NewMemorySampler(o.memStat),
	}
	s.snap = model.Snapshot{
		Timestamp:  s.now(),
		GPUBackend: s.gpu.Kind(),
		RAMTotal:   s.mem.Total(),
	}
	log.Info("sampler ready",
		zap.Stringer("gpu_backend", s.snap.GPUBackend),
		zap.Duration("interval", cfg.Interval),
		zap.Float64("smoothing_rate", cfg.SmoothingRate),
		zap.Float64("ram_total_gib", s.snap.RAMTotal))
	return s
}

// Update advances the sampler by one frame of length dt. When the sampling
// interval has elapsed it first runs a measurement pass; on every call it
// moves the displayed load values toward their targets.
func (s *Sampler) Update(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	if s.sched.Tick(dt) {
		s.measure()
	}
	s.snap.CPULoad = Advance(s.snap.CPULoad, s.targetCPU, dt, s.rate)
	s.snap.GPULoad = Advance(s.snap.GPULoad, s.targetGPU, dt, s.rate)
	s.snap.RAMPercent = Advance(s.snap.RAMPercent, s.targetRAM, dt, s.rate)
	s.snap.Timestamp = s.now()
}

func (s *Sampler) measure() {
	s.passes++

	cpuTarget, err := s.cpu.Measure()
	if err != nil {
		s.log.Debug("cpu measurement skipped", zap.Error(err))
	}
	s.targetCPU = cpuTarget

	r := s.gpu.Measure()
	s.targetGPU = r.Load
	s.snap.GPUTemperature = r.Temperature
	s.snap.GPUVRAMUsed = r.VRAMUsed
	s.snap.GPUVRAMTotal = r.VRAMTotal
	s.snap.GPUName = r.Name

	m, err := s.mem.Measure()
	if err != nil {
		s.log.Debug("memory measurement skipped", zap.Error(err))
		return
	}
	s.snap.RAMUsage = m.UsedGiB
	s.targetRAM = m.Percent
}

// Snapshot returns the readings as of the last Update.
func (s *Sampler) Snapshot() model.Snapshot { return s.snap }

// Passes is the number of measurement passes run so far.
func (s *Sampler) Passes() uint64 { return s.passes }

// GPUKind reports the bound GPU backend.
func (s *Sampler) GPUKind() model.GPUKind { return s.gpu.Kind() }

// Close releases the GPU backend's native handles. It is safe to call more
// than once.
func (s *Sampler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.gpu.Close()
}
