// Package gpu selects one GPU telemetry backend at startup and samples it.
//
// Three backends are probed in a fixed order: the NVIDIA management
// library (NVML), the AMD display library (ADL), and the operating
// system's generic performance counters. The first one that initializes
// is bound for the life of the process; the rest are never touched.
package gpu

import (
	"go.uber.org/zap"

	"github.com/Dicklesworthstone/sysglance/internal/model"
)

// Binding is the backend chosen by Probe. The set of variants is closed:
// Unbound, *NVMLBinding, *ADLBinding and *CounterBinding.
type Binding interface {
	binding()
}

// Unbound is the binding used when no backend could be initialized. All
// GPU readings stay at zero.
type Unbound struct{}

// NVMLBinding holds an initialized NVML library and the device at index 0.
type NVMLBinding struct {
	lib       NVMLLibrary
	dev       NVMLDevice
	hasTemp   bool
	hasMemory bool
	name      string
	vramTotal float64
}

// ADLBinding holds an ADL context bound to the first adapter that answered
// an activity query.
type ADLBinding struct {
	lib       ADLLibrary
	adapter   ADLAdapter
	vramTotal float64
}

// CounterBinding holds an open counter query with the engine utilization
// counter added.
type CounterBinding struct {
	query CounterQuery
}

func (Unbound) binding()         {}
func (*NVMLBinding) binding()    {}
func (*ADLBinding) binding()     {}
func (*CounterBinding) binding() {}

// Kind reports which backend b represents.
func Kind(b Binding) model.GPUKind {
	switch b.(type) {
	case *NVMLBinding:
		return model.GPUNVML
	case *ADLBinding:
		return model.GPUADL
	case *CounterBinding:
		return model.GPUCounters
	default:
		return model.GPUNone
	}
}

func release(b Binding) error {
	switch v := b.(type) {
	case *NVMLBinding:
		return v.lib.Close()
	case *ADLBinding:
		return v.lib.Close()
	case *CounterBinding:
		return v.query.Close()
	default:
		return nil
	}
}

// Reading is one GPU measurement. Load is a percentage in [0,100],
// temperature is in celsius and VRAM figures are in GiB.
type Reading struct {
	Load        float64
	Temperature float64
	VRAMUsed    float64
	VRAMTotal   float64
	Name        string
}

// Sampler measures the bound backend. A field whose query fails keeps the
// value from the previous measurement.
type Sampler struct {
	binding Binding
	last    Reading
	log     *zap.Logger
}

// NewSampler takes ownership of b; Close releases it.
func NewSampler(b Binding, log *zap.Logger) *Sampler {
	if b == nil {
		b = Unbound{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sampler{binding: b, log: log}
	switch v := b.(type) {
	case *NVMLBinding:
		s.last.VRAMTotal = v.vramTotal
		s.last.Name = v.name
	case *ADLBinding:
		s.last.VRAMTotal = v.vramTotal
		s.last.Name = v.adapter.Name
	}
	return s
}

// Kind returns the kind of the bound backend.
func (s *Sampler) Kind() model.GPUKind { return Kind(s.binding) }

// Measure runs one measurement pass against the bound backend.
func (s *Sampler) Measure() Reading {
	r := s.last
	switch b := s.binding.(type) {
	case *NVMLBinding:
		b.measure(&r)
	case *ADLBinding:
		b.measure(&r)
	case *CounterBinding:
		b.measure(&r)
	default:
		r = Reading{}
	}
	r.Load = model.ClampPercent(r.Load)
	s.last = r
	return r
}

// Close releases the native handles held by the binding. Later calls are
// no-ops and the sampler reports zeros from then on.
func (s *Sampler) Close() error {
	b := s.binding
	s.binding = Unbound{}
	s.last = Reading{}
	if err := release(b); err != nil {
		s.log.Warn("releasing gpu backend", zap.Stringer("backend", Kind(b)), zap.Error(err))
		return err
	}
	return nil
}
