package gpu

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/Dicklesworthstone/sysglance/internal/dynlib"
	"github.com/Dicklesworthstone/sysglance/internal/model"
)

const (
	adlSymCreate      = "ADL_Main_Control_Create"
	adlSymDestroy     = "ADL_Main_Control_Destroy"
	adlSymNumAdapters = "ADL_Adapter_NumberOfAdapters_Get"
	adlSymAdapterInfo = "ADL_Adapter_AdapterInfo_Get"
	adlSymActivity    = "ADL_Overdrive5_CurrentActivity_Get"
	adlSymMemoryInfo  = "ADL_Adapter_MemoryInfo_Get"
	adlOK             = 0
	adlEnumConnected  = 1
)

// ADLAdapter is one entry of the ADL adapter table.
type ADLAdapter struct {
	Index   int
	Present bool
	Name    string
}

// ADLLibrary is an ADL context created on a loaded library. Close destroys
// the context and unloads the library.
type ADLLibrary interface {
	HasSymbol(name string) bool
	Adapters() ([]ADLAdapter, error)
	Activity(adapter int) (int, error)
	MemorySize(adapter int) (uint64, error)
	Close() error
}

func probeADL(open func() (ADLLibrary, error)) (_ *ADLBinding, err error) {
	if open == nil {
		return nil, ErrDisabled
	}
	lib, err := open()
	if err != nil {
		return nil, fmt.Errorf("adl: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, lib.Close())
		}
	}()

	for _, sym := range []string{adlSymNumAdapters, adlSymAdapterInfo, adlSymActivity} {
		if !lib.HasSymbol(sym) {
			return nil, fmt.Errorf("adl: %w: %s", ErrMissingSymbol, sym)
		}
	}
	adapters, err := lib.Adapters()
	if err != nil {
		return nil, fmt.Errorf("adl: adapters: %w", err)
	}
	for _, a := range adapters {
		if !a.Present {
			continue
		}
		if _, aerr := lib.Activity(a.Index); aerr != nil {
			continue
		}
		b := &ADLBinding{lib: lib, adapter: a}
		if lib.HasSymbol(adlSymMemoryInfo) {
			if size, merr := lib.MemorySize(a.Index); merr == nil {
				b.vramTotal = model.BytesToGiB(size)
			}
		}
		return b, nil
	}
	return nil, fmt.Errorf("adl: %w among %d adapters", ErrNoAdapter, len(adapters))
}

func (b *ADLBinding) measure(r *Reading) {
	if pct, err := b.lib.Activity(b.adapter.Index); err == nil {
		r.Load = float64(pct)
	}
	r.VRAMTotal = b.vramTotal
}

type adlPMActivity struct {
	Size                    int32
	EngineClock             int32
	MemoryClock             int32
	Vddc                    int32
	ActivityPercent         int32
	CurrentPerformanceLevel int32
	CurrentBusSpeed         int32
	CurrentBusLanes         int32
	MaximumBusLanes         int32
	Reserved                int32
}

type adlMemoryInfo struct {
	MemorySize      int64
	MemoryType      [256]byte
	MemoryBandwidth int64
}

// adlAdapterInfoBase is the portable prefix of ADL's AdapterInfo. The Linux
// build of the library appends X screen fields, see adlAdapterInfo.
type adlAdapterInfoBase struct {
	Size           int32
	AdapterIndex   int32
	UDID           [256]byte
	BusNumber      int32
	DeviceNumber   int32
	FunctionNumber int32
	VendorID       int32
	AdapterName    [256]byte
	DisplayName    [256]byte
	Present        int32
	Exist          int32
	DriverPath     [256]byte
	DriverPathExt  [256]byte
	PNPString      [256]byte
	OSDisplayIndex int32
}

// adlHeap backs the allocation callback handed to ADL_Main_Control_Create.
// ADL keeps returned buffers until the context is destroyed, so they are
// pinned and dropped together on Close. The callback itself is created
// once per process because trampolines are never freed.
var adlHeap struct {
	sync.Mutex
	pinner runtime.Pinner
	bufs   [][]byte
}

var adlAllocCallback = sync.OnceValue(func() uintptr {
	return dynlib.NewCallback(func(arg uintptr) uintptr {
		size, ok := adlAllocSize(arg)
		if !ok {
			return 0
		}
		buf := make([]byte, size)
		adlHeap.Lock()
		defer adlHeap.Unlock()
		adlHeap.pinner.Pin(&buf[0])
		adlHeap.bufs = append(adlHeap.bufs, buf)
		return uintptr(unsafe.Pointer(&buf[0]))
	})
})

// adlAllocSize decodes the int argument of the allocation callback. Only
// the low 32 bits of the register are defined.
func adlAllocSize(arg uintptr) (int, bool) {
	size := int32(arg)
	if size <= 0 || size > 1<<30 {
		return 0, false
	}
	return int(size), true
}

func releaseADLHeap() {
	adlHeap.Lock()
	defer adlHeap.Unlock()
	adlHeap.pinner.Unpin()
	adlHeap.bufs = nil
}

// openADL loads the ADL library and creates its context. On any failure the
// library is unloaded before returning.
func openADL(paths []string) (ADLLibrary, error) {
	lib, err := dynlib.Open(paths...)
	if err != nil {
		return nil, err
	}
	create, ok := lib.Lookup(adlSymCreate)
	if !ok {
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrMissingSymbol, adlSymCreate), lib.Close())
	}
	if ret := int32(create.Call(adlAllocCallback(), adlEnumConnected)); ret != adlOK {
		releaseADLHeap()
		return nil, errors.Join(fmt.Errorf("%w: adl control create returned %d", ErrInit, ret), lib.Close())
	}
	return &dllADL{lib: lib}, nil
}

type dllADL struct {
	lib *dynlib.Library
}

func (a *dllADL) HasSymbol(name string) bool {
	_, ok := a.lib.Lookup(name)
	return ok
}

func (a *dllADL) proc(name string) (dynlib.Proc, error) {
	p, ok := a.lib.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingSymbol, name)
	}
	return p, nil
}

func (a *dllADL) Adapters() ([]ADLAdapter, error) {
	numProc, err := a.proc(adlSymNumAdapters)
	if err != nil {
		return nil, err
	}
	infoProc, err := a.proc(adlSymAdapterInfo)
	if err != nil {
		return nil, err
	}

	var n int32
	if ret := int32(numProc.Call(uintptr(unsafe.Pointer(&n)))); ret != adlOK {
		return nil, fmt.Errorf("adapter count returned %d", ret)
	}
	if n <= 0 {
		return nil, nil
	}
	infos := make([]adlAdapterInfo, n)
	stride := int32(unsafe.Sizeof(infos[0]))
	for i := range infos {
		infos[i].Size = stride
	}
	if ret := int32(infoProc.Call(uintptr(unsafe.Pointer(&infos[0])), uintptr(stride*n))); ret != adlOK {
		return nil, fmt.Errorf("adapter info returned %d", ret)
	}

	out := make([]ADLAdapter, 0, n)
	for _, info := range infos {
		out = append(out, ADLAdapter{
			Index:   int(info.AdapterIndex),
			Present: info.Present != 0,
			Name:    cString(info.AdapterName[:]),
		})
	}
	return out, nil
}

func (a *dllADL) Activity(adapter int) (int, error) {
	p, err := a.proc(adlSymActivity)
	if err != nil {
		return 0, err
	}
	act := adlPMActivity{Size: int32(unsafe.Sizeof(adlPMActivity{}))}
	if ret := int32(p.Call(uintptr(adapter), uintptr(unsafe.Pointer(&act)))); ret != adlOK {
		return 0, fmt.Errorf("activity of adapter %d returned %d", adapter, ret)
	}
	return int(act.ActivityPercent), nil
}

func (a *dllADL) MemorySize(adapter int) (uint64, error) {
	p, err := a.proc(adlSymMemoryInfo)
	if err != nil {
		return 0, err
	}
	var info adlMemoryInfo
	if ret := int32(p.Call(uintptr(adapter), uintptr(unsafe.Pointer(&info)))); ret != adlOK {
		return 0, fmt.Errorf("memory info of adapter %d returned %d", adapter, ret)
	}
	if info.MemorySize < 0 {
		return 0, fmt.Errorf("memory info of adapter %d: negative size", adapter)
	}
	return uint64(info.MemorySize), nil
}

func (a *dllADL) Close() error {
	var destroyErr error
	if destroy, ok := a.lib.Lookup(adlSymDestroy); ok {
		if ret := int32(destroy.Call()); ret != adlOK {
			destroyErr = fmt.Errorf("adl: control destroy returned %d", ret)
		}
	}
	releaseADLHeap()
	return errors.Join(destroyErr, a.lib.Close())
}

// cString returns the bytes of b up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
