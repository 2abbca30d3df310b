//go:build !linux && !windows

package gpu

import "github.com/Dicklesworthstone/sysglance/internal/dynlib"

func openNVML([]string) (NVMLLibrary, error) {
	return nil, dynlib.ErrUnsupported
}
