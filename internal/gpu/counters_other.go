//go:build !linux && !windows

package gpu

import "github.com/Dicklesworthstone/sysglance/internal/dynlib"

func openCounters(string) (CounterQuery, error) {
	return nil, dynlib.ErrUnsupported
}
