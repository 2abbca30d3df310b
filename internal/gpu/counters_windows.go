//go:build windows

package gpu

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/Dicklesworthstone/sysglance/internal/dynlib"
)

const (
	pdhFmtDouble         = 0x00000200
	pdhMoreData          = 0x800007D2
	pdhCStatusValidData  = 0x00000000
	pdhCStatusNewData    = 0x00000001
	pdhErrorSuccess      = 0
	pdhLibrary           = "pdh.dll"
	pdhOpenQuery         = "PdhOpenQueryW"
	pdhAddEnglishCounter = "PdhAddEnglishCounterW"
	pdhAddCounter        = "PdhAddCounterW"
	pdhCollectQueryData  = "PdhCollectQueryData"
	pdhGetFormattedArray = "PdhGetFormattedCounterArrayW"
	pdhCloseQuery        = "PdhCloseQuery"
)

type pdhFmtCounterValueDouble struct {
	CStatus     uint32
	_           uint32
	DoubleValue float64
}

// pdhFmtCounterValueItemDouble mirrors PDH_FMT_COUNTERVALUE_ITEM_W. Name
// points into the same buffer as the item array.
type pdhFmtCounterValueItemDouble struct {
	Name     uintptr
	FmtValue pdhFmtCounterValueDouble
}

func pdhStatus(op string, ret uintptr) error {
	return fmt.Errorf("%s: pdh status 0x%08X", op, uint32(ret))
}

// pdhQuery is a PDH query handle with at most one counter.
type pdhQuery struct {
	lib     *dynlib.Library
	procs   map[string]dynlib.Proc
	query   uintptr
	counter uintptr
}

func openCounters(string) (CounterQuery, error) {
	lib, err := dynlib.Open(pdhLibrary)
	if err != nil {
		return nil, err
	}
	procs := make(map[string]dynlib.Proc)
	for _, name := range []string{pdhOpenQuery, pdhAddEnglishCounter, pdhAddCounter, pdhCollectQueryData, pdhGetFormattedArray, pdhCloseQuery} {
		p, ok := lib.Lookup(name)
		if !ok {
			return nil, errors.Join(fmt.Errorf("%w: %s", ErrMissingSymbol, name), lib.Close())
		}
		procs[name] = p
	}
	q := &pdhQuery{lib: lib, procs: procs}
	if ret := procs[pdhOpenQuery].Call(0, 0, uintptr(unsafe.Pointer(&q.query))); uint32(ret) != pdhErrorSuccess {
		return nil, errors.Join(pdhStatus(pdhOpenQuery, ret), lib.Close())
	}
	return q, nil
}

func (q *pdhQuery) AddEnglishCounter(path string) error {
	return q.add(pdhAddEnglishCounter, path)
}

func (q *pdhQuery) AddCounter(path string) error {
	return q.add(pdhAddCounter, path)
}

func (q *pdhQuery) add(proc, path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	var counter uintptr
	if ret := q.procs[proc].Call(q.query, uintptr(unsafe.Pointer(p)), 0, uintptr(unsafe.Pointer(&counter))); uint32(ret) != pdhErrorSuccess {
		return pdhStatus(proc, ret)
	}
	q.counter = counter
	return nil
}

func (q *pdhQuery) Collect() error {
	if ret := q.procs[pdhCollectQueryData].Call(q.query); uint32(ret) != pdhErrorSuccess {
		return pdhStatus(pdhCollectQueryData, ret)
	}
	return nil
}

func (q *pdhQuery) Items() ([]CounterItem, error) {
	if q.counter == 0 {
		return nil, errors.New("no counter added")
	}
	get := q.procs[pdhGetFormattedArray]
	var size, count uint32
	ret := get.Call(q.counter, pdhFmtDouble, uintptr(unsafe.Pointer(&size)), uintptr(unsafe.Pointer(&count)), 0)
	switch uint32(ret) {
	case pdhMoreData:
	case pdhErrorSuccess:
		return nil, nil
	default:
		return nil, pdhStatus(pdhGetFormattedArray, ret)
	}
	if size == 0 {
		return nil, nil
	}

	buf := make([]byte, size)
	ret = get.Call(q.counter, pdhFmtDouble, uintptr(unsafe.Pointer(&size)), uintptr(unsafe.Pointer(&count)), uintptr(unsafe.Pointer(&buf[0])))
	if uint32(ret) != pdhErrorSuccess {
		return nil, pdhStatus(pdhGetFormattedArray, ret)
	}
	itemSize := unsafe.Sizeof(pdhFmtCounterValueItemDouble{})
	if uintptr(count)*itemSize > uintptr(len(buf)) {
		return nil, fmt.Errorf("%s: %d items overflow %d byte buffer", pdhGetFormattedArray, count, len(buf))
	}

	base := uintptr(unsafe.Pointer(&buf[0]))
	raw := unsafe.Slice((*pdhFmtCounterValueItemDouble)(unsafe.Pointer(&buf[0])), count)
	items := make([]CounterItem, 0, count)
	for _, it := range raw {
		status := it.FmtValue.CStatus
		items = append(items, CounterItem{
			Name:  utf16At(buf, base, it.Name),
			Value: it.FmtValue.DoubleValue,
			Valid: status == pdhCStatusValidData || status == pdhCStatusNewData,
		})
	}
	return items, nil
}

// utf16At decodes the NUL-terminated UTF-16 string at address addr, which
// must lie inside buf (whose first byte is at base).
func utf16At(buf []byte, base, addr uintptr) string {
	if addr < base || addr >= base+uintptr(len(buf)) {
		return ""
	}
	var units []uint16
	for i := int(addr - base); i+1 < len(buf); i += 2 {
		u := uint16(buf[i]) | uint16(buf[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

func (q *pdhQuery) Close() error {
	var closeErr error
	if q.query != 0 {
		if ret := q.procs[pdhCloseQuery].Call(q.query); uint32(ret) != pdhErrorSuccess {
			closeErr = pdhStatus(pdhCloseQuery, ret)
		}
		q.query = 0
		q.counter = 0
	}
	return errors.Join(closeErr, q.lib.Close())
}
