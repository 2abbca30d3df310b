package sampler

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Dicklesworthstone/sysglance/internal/model"
)

// MemoryStat is the physical memory status reported by the OS. LoadPercent
// is the platform's own load figure and is not derived from the byte
// counts.
type MemoryStat struct {
	Total       uint64
	Available   uint64
	LoadPercent float64
}

// MemoryStatFunc reads the current memory status.
type MemoryStatFunc func() (MemoryStat, error)

// ReadMemoryStat reads physical memory through gopsutil.
func ReadMemoryStat() (MemoryStat, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStat{}, err
	}
	return MemoryStat{Total: v.Total, Available: v.Available, LoadPercent: v.UsedPercent}, nil
}

// MemoryReading is one memory measurement in GiB and percent.
type MemoryReading struct {
	UsedGiB  float64
	Percent  float64
	TotalGiB float64
}

// MemorySampler measures used memory. Total is read once at construction.
type MemorySampler struct {
	read  MemoryStatFunc
	total float64
	last  MemoryReading
}

func NewMemorySampler(read MemoryStatFunc) *MemorySampler {
	if read == nil {
		read = ReadMemoryStat
	}
	m := &MemorySampler{read: read}
	if st, err := read(); err == nil {
		m.total = model.BytesToGiB(st.Total)
	}
	m.last.TotalGiB = m.total
	return m
}

// Total is the physical memory size captured at construction, in GiB.
func (m *MemorySampler) Total() float64 { return m.total }

// Measure returns the current reading, or the previous one with the error
// when the OS query fails.
func (m *MemorySampler) Measure() (MemoryReading, error) {
	st, err := m.read()
	if err != nil {
		return m.last, err
	}
	var used float64
	if st.Total > st.Available {
		used = model.BytesToGiB(st.Total - st.Available)
	}
	m.last = MemoryReading{
		UsedGiB:  used,
		Percent:  model.ClampPercent(st.LoadPercent),
		TotalGiB: m.total,
	}
	return m.last, nil
}
