package gpu

import "errors"

var errFake = errors.New("fake failure")

type fakeNVMLDevice struct {
	util    uint32
	utilErr error
	temp    uint32
	tempErr error
	mem     NVMLMemory
	memErr  error
	name    string
}

func (d *fakeNVMLDevice) Utilization() (uint32, error)    { return d.util, d.utilErr }
func (d *fakeNVMLDevice) Temperature() (uint32, error)    { return d.temp, d.tempErr }
func (d *fakeNVMLDevice) MemoryInfo() (NVMLMemory, error) { return d.mem, d.memErr }
func (d *fakeNVMLDevice) Name() (string, error)           { return d.name, nil }

type fakeNVML struct {
	missing map[string]bool
	dev     *fakeNVMLDevice
	devErr  error
	closed  int
}

func newFakeNVML(dev *fakeNVMLDevice, missing ...string) *fakeNVML {
	f := &fakeNVML{dev: dev, missing: map[string]bool{}}
	for _, m := range missing {
		f.missing[m] = true
	}
	return f
}

func (f *fakeNVML) HasSymbol(name string) bool { return !f.missing[name] }

func (f *fakeNVML) DeviceByIndex(index int) (NVMLDevice, error) {
	if f.devErr != nil {
		return nil, f.devErr
	}
	return f.dev, nil
}

func (f *fakeNVML) Close() error {
	f.closed++
	return nil
}

type fakeADL struct {
	missing     map[string]bool
	adapters    []ADLAdapter
	adaptersErr error
	activity    map[int]int
	activityErr map[int]error
	memSize     map[int]uint64
	closed      int
}

func (f *fakeADL) HasSymbol(name string) bool { return !f.missing[name] }

func (f *fakeADL) Adapters() ([]ADLAdapter, error) { return f.adapters, f.adaptersErr }

func (f *fakeADL) Activity(adapter int) (int, error) {
	if err := f.activityErr[adapter]; err != nil {
		return 0, err
	}
	pct, ok := f.activity[adapter]
	if !ok {
		return 0, errFake
	}
	return pct, nil
}

func (f *fakeADL) MemorySize(adapter int) (uint64, error) {
	size, ok := f.memSize[adapter]
	if !ok {
		return 0, errFake
	}
	return size, nil
}

func (f *fakeADL) Close() error {
	f.closed++
	return nil
}

type fakeQuery struct {
	englishErr error
	localErr   error
	collectErr error
	items      []CounterItem
	itemsErr   error
	added      []string
	collects   int
	closed     int
}

func (q *fakeQuery) AddEnglishCounter(path string) error {
	if q.englishErr != nil {
		return q.englishErr
	}
	q.added = append(q.added, "english:"+path)
	return nil
}

func (q *fakeQuery) AddCounter(path string) error {
	if q.localErr != nil {
		return q.localErr
	}
	q.added = append(q.added, "local:"+path)
	return nil
}

func (q *fakeQuery) Collect() error {
	q.collects++
	return q.collectErr
}

func (q *fakeQuery) Items() ([]CounterItem, error) { return q.items, q.itemsErr }

func (q *fakeQuery) Close() error {
	q.closed++
	return nil
}

// openCounts records how often each opener ran.
type openCounts struct {
	nvml, adl, counters int
}

func countingOpeners(c *openCounts, nvml NVMLLibrary, nvmlErr error, adl ADLLibrary, adlErr error, q CounterQuery, qErr error) Openers {
	return Openers{
		NVML: func() (NVMLLibrary, error) {
			c.nvml++
			if nvmlErr != nil {
				return nil, nvmlErr
			}
			return nvml, nil
		},
		ADL: func() (ADLLibrary, error) {
			c.adl++
			if adlErr != nil {
				return nil, adlErr
			}
			return adl, nil
		},
		Counters: func() (CounterQuery, error) {
			c.counters++
			if qErr != nil {
				return nil, qErr
			}
			return q, nil
		},
	}
}
