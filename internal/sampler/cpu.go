package sampler

import (
	"errors"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Dicklesworthstone/sysglance/internal/model"
)

// CPUTimes are cumulative system-wide CPU times in seconds. Kernel includes
// Idle, so Kernel+User is the total elapsed CPU time.
type CPUTimes struct {
	Idle   float64
	Kernel float64
	User   float64
}

// CPUTimesFunc reads the current cumulative CPU times.
type CPUTimesFunc func() (CPUTimes, error)

// ReadCPUTimes reads aggregate CPU times through gopsutil. iowait counts as
// idle and nice as user time.
func ReadCPUTimes() (CPUTimes, error) {
	times, err := cpu.Times(false)
	if err != nil {
		return CPUTimes{}, err
	}
	if len(times) == 0 {
		return CPUTimes{}, errors.New("cpu: no aggregate times")
	}
	t := times[0]
	user := t.User + t.Nice
	return CPUTimes{
		Idle:   t.Idle + t.Iowait,
		Kernel: t.Total() - user,
		User:   user,
	}, nil
}

// CPUSampler turns cumulative CPU times into a utilization percentage
// averaged over the last HistorySize measurements.
type CPUSampler struct {
	read    CPUTimesFunc
	prev    CPUTimes
	primed  bool
	raw     float64
	history History
}

func NewCPUSampler(read CPUTimesFunc) *CPUSampler {
	if read == nil {
		read = ReadCPUTimes
	}
	return &CPUSampler{read: read}
}

// Measure reads the counters once, records the raw percentage in the
// history and returns the history mean. The first call only records the
// baseline and contributes 0. When no CPU time elapsed since the previous
// call the previous raw value is recorded again. A failed read records
// nothing.
func (c *CPUSampler) Measure() (float64, error) {
	now, err := c.read()
	if err != nil {
		return c.history.Mean(), err
	}
	raw := c.raw
	if !c.primed {
		raw = 0
		c.primed = true
	} else {
		idle := now.Idle - c.prev.Idle
		total := (now.Kernel - c.prev.Kernel) + (now.User - c.prev.User)
		if total > 0 {
			raw = model.ClampPercent((1 - idle/total) * 100)
		}
	}
	c.prev = now
	c.raw = raw
	c.history.Push(raw)
	return c.history.Mean(), nil
}

// Raw is the most recent unsmoothed percentage.
func (c *CPUSampler) Raw() float64 { return c.raw }

// History exposes the ring for inspection.
func (c *CPUSampler) History() *History { return &c.history }
