package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Dicklesworthstone/sysglance/internal/dynlib"
	"github.com/Dicklesworthstone/sysglance/internal/model"
)

func TestProbeStopsAtNVML(t *testing.T) {
	var c openCounts
	nvml := newFakeNVML(&fakeNVMLDevice{util: 30})
	b := Probe(countingOpeners(&c, nvml, nil, &fakeADL{}, nil, &fakeQuery{}, nil), zaptest.NewLogger(t))

	assert.Equal(t, model.GPUNVML, Kind(b))
	assert.Equal(t, openCounts{nvml: 1}, c, "ADL and counters must not be attempted")
	assert.Equal(t, 0, nvml.closed)
}

func TestProbeFallsBackToADL(t *testing.T) {
	var c openCounts
	adl := &fakeADL{
		adapters: []ADLAdapter{{Index: 0, Present: true, Name: "Radeon"}},
		activity: map[int]int{0: 12},
	}
	b := Probe(countingOpeners(&c, nil, dynlib.ErrNotFound, adl, nil, &fakeQuery{}, nil), zaptest.NewLogger(t))

	assert.Equal(t, model.GPUADL, Kind(b))
	assert.Equal(t, openCounts{nvml: 1, adl: 1}, c, "counters must not be attempted")
}

func TestProbeFallsBackToCounters(t *testing.T) {
	var c openCounts
	q := &fakeQuery{}
	b := Probe(countingOpeners(&c, nil, dynlib.ErrNotFound, nil, dynlib.ErrNotFound, q, nil), zaptest.NewLogger(t))

	assert.Equal(t, model.GPUCounters, Kind(b))
	assert.Equal(t, openCounts{nvml: 1, adl: 1, counters: 1}, c)
	assert.Equal(t, []string{"english:" + EngineUtilizationCounter}, q.added)
	assert.Equal(t, 1, q.collects, "probe primes the query once")
}

func TestProbeAllFailIsUnbound(t *testing.T) {
	var c openCounts
	b := Probe(countingOpeners(&c, nil, dynlib.ErrNotFound, nil, dynlib.ErrNotFound, nil, dynlib.ErrUnsupported), zaptest.NewLogger(t))

	assert.Equal(t, Unbound{}, b)
	assert.Equal(t, model.GPUNone, Kind(b))

	s := NewSampler(b, zaptest.NewLogger(t))
	for i := 0; i < 3; i++ {
		assert.Equal(t, Reading{}, s.Measure())
	}
	assert.NoError(t, s.Close())
}

func TestProbeWithDisabledBackends(t *testing.T) {
	b := Probe(Openers{}, nil)
	assert.Equal(t, Unbound{}, b)

	q := &fakeQuery{}
	b = Probe(Openers{Counters: func() (CounterQuery, error) { return q, nil }}, nil)
	assert.Equal(t, model.GPUCounters, Kind(b))
}

func TestNVMLMissingRequiredSymbolIsReleased(t *testing.T) {
	for _, sym := range []string{nvmlSymHandleByIndex, nvmlSymUtilization} {
		t.Run(sym, func(t *testing.T) {
			lib := newFakeNVML(&fakeNVMLDevice{}, sym)
			_, err := probeNVML(func() (NVMLLibrary, error) { return lib, nil })
			require.ErrorIs(t, err, ErrMissingSymbol)
			assert.Equal(t, 1, lib.closed)
		})
	}
}

func TestNVMLDeviceFailureIsReleased(t *testing.T) {
	lib := newFakeNVML(nil)
	lib.devErr = errFake
	_, err := probeNVML(func() (NVMLLibrary, error) { return lib, nil })
	require.ErrorIs(t, err, errFake)
	assert.Equal(t, 1, lib.closed)
}

func TestNVMLOptionalEntryPoints(t *testing.T) {
	dev := &fakeNVMLDevice{util: 55, temp: 71, mem: NVMLMemory{Total: 8 << 30, Used: 2 << 30}}
	lib := newFakeNVML(dev, nvmlSymTemperature, nvmlSymMemoryInfo)
	b, err := probeNVML(func() (NVMLLibrary, error) { return lib, nil })
	require.NoError(t, err)

	s := NewSampler(b, nil)
	r := s.Measure()
	assert.Equal(t, 55.0, r.Load)
	assert.Zero(t, r.Temperature, "temperature entry point is absent")
	assert.Zero(t, r.VRAMUsed)
	assert.Zero(t, r.VRAMTotal)
}

func TestNVMLMeasure(t *testing.T) {
	dev := &fakeNVMLDevice{util: 40, temp: 65, mem: NVMLMemory{Total: 8 << 30, Used: 3 << 30}, name: "RTX"}
	lib := newFakeNVML(dev)
	b, err := probeNVML(func() (NVMLLibrary, error) { return lib, nil })
	require.NoError(t, err)

	s := NewSampler(b, nil)
	r := s.Measure()
	assert.Equal(t, Reading{Load: 40, Temperature: 65, VRAMUsed: 3, VRAMTotal: 8, Name: "RTX"}, r)

	// A failing call keeps that field and leaves the others alone.
	dev.tempErr = errFake
	dev.util = 90
	r = s.Measure()
	assert.Equal(t, 90.0, r.Load)
	assert.Equal(t, 65.0, r.Temperature)

	dev.utilErr = errFake
	dev.tempErr = nil
	dev.temp = 70
	r = s.Measure()
	assert.Equal(t, 90.0, r.Load)
	assert.Equal(t, 70.0, r.Temperature)

	dev.utilErr = nil
	dev.util = 150
	assert.Equal(t, 100.0, s.Measure().Load)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, lib.closed)
}

func TestADLSkipsAbsentAndSilentAdapters(t *testing.T) {
	adl := &fakeADL{
		adapters: []ADLAdapter{
			{Index: 0, Present: false},
			{Index: 3, Present: true},
			{Index: 5, Present: true, Name: "RX 7900"},
			{Index: 6, Present: true},
		},
		activity:    map[int]int{0: 10, 5: 33, 6: 44},
		activityErr: map[int]error{3: errFake},
		memSize:     map[int]uint64{5: 24 << 30},
	}
	b, err := probeADL(func() (ADLLibrary, error) { return adl, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, b.adapter.Index)

	s := NewSampler(b, nil)
	r := s.Measure()
	assert.Equal(t, Reading{Load: 33, VRAMTotal: 24, Name: "RX 7900"}, r)

	adl.activityErr[5] = errFake
	assert.Equal(t, 33.0, s.Measure().Load)
	assert.Zero(t, s.Measure().Temperature)
}

func TestADLNoResponderIsReleased(t *testing.T) {
	adl := &fakeADL{
		adapters:    []ADLAdapter{{Index: 0, Present: true}, {Index: 1, Present: false}},
		activityErr: map[int]error{0: errFake},
		activity:    map[int]int{1: 5},
	}
	_, err := probeADL(func() (ADLLibrary, error) { return adl, nil })
	require.ErrorIs(t, err, ErrNoAdapter)
	assert.Equal(t, 1, adl.closed)
}

func TestADLMissingRequiredSymbolIsReleased(t *testing.T) {
	adl := &fakeADL{missing: map[string]bool{adlSymActivity: true}}
	_, err := probeADL(func() (ADLLibrary, error) { return adl, nil })
	require.ErrorIs(t, err, ErrMissingSymbol)
	assert.Equal(t, 1, adl.closed)
}

func TestADLOptionalMemoryInfo(t *testing.T) {
	adl := &fakeADL{
		missing:  map[string]bool{adlSymMemoryInfo: true},
		adapters: []ADLAdapter{{Index: 2, Present: true}},
		activity: map[int]int{2: 1},
		memSize:  map[int]uint64{2: 8 << 30},
	}
	b, err := probeADL(func() (ADLLibrary, error) { return adl, nil })
	require.NoError(t, err)
	assert.Zero(t, b.vramTotal)
}

func TestCountersLocalizedFallback(t *testing.T) {
	q := &fakeQuery{englishErr: errFake}
	_, err := probeCounters(func() (CounterQuery, error) { return q, nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"local:" + EngineUtilizationCounter}, q.added)
	assert.Equal(t, 0, q.closed)
}

func TestCountersBothNamesFailIsReleased(t *testing.T) {
	q := &fakeQuery{englishErr: errFake, localErr: errFake}
	_, err := probeCounters(func() (CounterQuery, error) { return q, nil })
	require.Error(t, err)
	assert.Equal(t, 1, q.closed)
}

func TestCountersExcludeInvalidItems(t *testing.T) {
	q := &fakeQuery{items: []CounterItem{
		{Name: "engine_0", Value: 12.0, Valid: true},
		{Name: "engine_1", Value: 99.0, Valid: false},
		{Name: "engine_2", Value: 47.0, Valid: true},
	}}
	b, err := probeCounters(func() (CounterQuery, error) { return q, nil })
	require.NoError(t, err)

	s := NewSampler(b, nil)
	assert.Equal(t, 47.0, s.Measure().Load)

	// Every item stale: previous value stands.
	q.items = []CounterItem{{Value: 5}, {Value: 80}}
	assert.Equal(t, 47.0, s.Measure().Load)

	// Failed collection: previous value stands.
	q.collectErr = errFake
	q.items = []CounterItem{{Value: 3, Valid: true}}
	assert.Equal(t, 47.0, s.Measure().Load)

	q.collectErr = nil
	assert.Equal(t, 3.0, s.Measure().Load)

	q.items = nil
	assert.Equal(t, 0.0, s.Measure().Load, "no engines means idle")
}

func TestMaxValid(t *testing.T) {
	v, ok := maxValid([]CounterItem{{Value: 12, Valid: true}, {Value: 0, Valid: false}, {Value: 47, Valid: true}})
	assert.True(t, ok)
	assert.Equal(t, 47.0, v)

	_, ok = maxValid([]CounterItem{{Value: 12}})
	assert.False(t, ok)

	v, ok = maxValid(nil)
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestSamplerCloseReleasesOnce(t *testing.T) {
	q := &fakeQuery{items: []CounterItem{{Value: 20, Valid: true}}}
	b, err := probeCounters(func() (CounterQuery, error) { return q, nil })
	require.NoError(t, err)

	s := NewSampler(b, nil)
	assert.Equal(t, 20.0, s.Measure().Load)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, q.closed)
	assert.Equal(t, model.GPUNone, s.Kind())
	assert.Equal(t, Reading{}, s.Measure())
}

func TestRepeatedProbeLeavesNoHandles(t *testing.T) {
	var opened, closed int
	openers := Openers{
		NVML: func() (NVMLLibrary, error) {
			lib := newFakeNVML(nil)
			lib.devErr = errFake
			opened++
			return &closeCounter{NVMLLibrary: lib, closed: &closed}, nil
		},
		ADL: func() (ADLLibrary, error) {
			adl := &fakeADL{adapters: []ADLAdapter{{Index: 0, Present: true}}, activityErr: map[int]error{0: errFake}}
			opened++
			return &adlCloseCounter{ADLLibrary: adl, closed: &closed}, nil
		},
		Counters: func() (CounterQuery, error) {
			opened++
			return &queryCloseCounter{CounterQuery: &fakeQuery{}, closed: &closed}, nil
		},
	}
	for i := 0; i < 25; i++ {
		s := NewSampler(Probe(openers, nil), nil)
		s.Measure()
		require.NoError(t, s.Close())
	}
	assert.Equal(t, 75, opened)
	assert.Equal(t, opened, closed)
}

type closeCounter struct {
	NVMLLibrary
	closed *int
}

func (c *closeCounter) Close() error {
	*c.closed++
	return c.NVMLLibrary.Close()
}

type adlCloseCounter struct {
	ADLLibrary
	closed *int
}

func (c *adlCloseCounter) Close() error {
	*c.closed++
	return c.ADLLibrary.Close()
}

type queryCloseCounter struct {
	CounterQuery
	closed *int
}

func (c *queryCloseCounter) Close() error {
	*c.closed++
	return c.CounterQuery.Close()
}

func TestADLAllocSizeUsesLowWord(t *testing.T) {
	garbage := uint64(0xdeadbeef) << 32
	size, ok := adlAllocSize(uintptr(garbage | 16))
	assert.True(t, ok)
	assert.Equal(t, 16, size)

	_, ok = adlAllocSize(0)
	assert.False(t, ok)
	_, ok = adlAllocSize(0xffffffff)
	assert.False(t, ok, "negative int")
	_, ok = adlAllocSize(1<<30 + 1)
	assert.False(t, ok)
}
