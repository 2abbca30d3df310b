package model

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// GPUKind identifies the GPU telemetry source bound at startup.
type GPUKind int

const (
	GPUNone GPUKind = iota
	GPUNVML
	GPUADL
	GPUCounters
)

func (k GPUKind) String() string {
	switch k {
	case GPUNVML:
		return "nvml"
	case GPUADL:
		return "adl"
	case GPUCounters:
		return "counters"
	default:
		return "none"
	}
}

// MarshalText makes the kind readable in JSON output.
func (k GPUKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Snapshot is the set of readings exposed to the presentation layer after
// every Update. Load percentages are smoothed; temperature and VRAM are raw.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	CPULoad float64 `json:"cpu_load"` // percent 0-100, smoothed

	GPULoad        float64 `json:"gpu_load"`        // percent 0-100, smoothed
	GPUTemperature float64 `json:"gpu_temperature"` // celsius
	GPUVRAMUsed    float64 `json:"gpu_vram_used"`   // GiB
	GPUVRAMTotal   float64 `json:"gpu_vram_total"`  // GiB
	GPUBackend     GPUKind `json:"gpu_backend"`
	GPUName        string  `json:"gpu_name,omitempty"`

	RAMUsage   float64 `json:"ram_usage"`   // GiB used
	RAMPercent float64 `json:"ram_percent"` // percent 0-100, smoothed
	RAMTotal   float64 `json:"ram_total"`   // GiB
}

const bytesPerGiB = 1 << 30

// BytesToGiB converts a byte count to GiB.
func BytesToGiB(b uint64) float64 { return float64(b) / bytesPerGiB }

// ClampPercent limits v to [0,100]. NaN is treated as 0.
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return lo.Clamp(v, 0, 100)
}
