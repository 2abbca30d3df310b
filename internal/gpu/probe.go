package gpu

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Dicklesworthstone/sysglance/internal/model"
)

var (
	// ErrDisabled is returned for a backend whose opener is nil.
	ErrDisabled = errors.New("gpu: backend disabled")
	// ErrMissingSymbol reports a required entry point the library does not export.
	ErrMissingSymbol = errors.New("gpu: required entry point missing")
	// ErrNoAdapter reports that no adapter answered during probing.
	ErrNoAdapter = errors.New("gpu: no responding adapter")
	// ErrInit reports a library that loaded but refused to initialize.
	ErrInit = errors.New("gpu: library initialization failed")
)

// Openers acquire the native resources of each backend. A nil opener
// disables that backend.
type Openers struct {
	NVML     func() (NVMLLibrary, error)
	ADL      func() (ADLLibrary, error)
	Counters func() (CounterQuery, error)
}

// OpenerConfig selects and locates the platform backends. Empty path lists
// fall back to the platform defaults.
type OpenerConfig struct {
	EnableNVML     bool
	EnableADL      bool
	EnableCounters bool
	NVMLPaths      []string
	ADLPaths       []string
	SysRoot        string
}

// DefaultOpeners returns the platform implementations of each backend.
func DefaultOpeners(c OpenerConfig) Openers {
	var o Openers
	if c.EnableNVML {
		paths := c.NVMLPaths
		if len(paths) == 0 {
			paths = defaultNVMLPaths
		}
		o.NVML = func() (NVMLLibrary, error) { return openNVML(paths) }
	}
	if c.EnableADL {
		paths := c.ADLPaths
		if len(paths) == 0 {
			paths = defaultADLPaths
		}
		o.ADL = func() (ADLLibrary, error) { return openADL(paths) }
	}
	if c.EnableCounters {
		root := c.SysRoot
		if root == "" {
			root = "/sys"
		}
		o.Counters = func() (CounterQuery, error) { return openCounters(root) }
	}
	return o
}

// Probe binds the first backend that initializes, trying NVML, then ADL,
// then the generic counters. Once a backend succeeds the remaining openers
// are not called. Every failed attempt has released what it acquired by
// the time Probe moves on.
func Probe(o Openers, log *zap.Logger) Binding {
	if log == nil {
		log = zap.NewNop()
	}
	candidates := []struct {
		kind  model.GPUKind
		probe func() (Binding, error)
	}{
		{model.GPUNVML, func() (Binding, error) { return probeNVML(o.NVML) }},
		{model.GPUADL, func() (Binding, error) { return probeADL(o.ADL) }},
		{model.GPUCounters, func() (Binding, error) { return probeCounters(o.Counters) }},
	}
	for _, c := range candidates {
		b, err := c.probe()
		if err != nil {
			log.Debug("gpu backend unavailable", zap.Stringer("backend", c.kind), zap.Error(err))
			continue
		}
		log.Info("gpu backend bound", zap.Stringer("backend", c.kind))
		return b
	}
	log.Info("no gpu backend available, gpu readings stay at zero")
	return Unbound{}
}
