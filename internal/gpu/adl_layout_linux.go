//go:build linux

package gpu

type adlAdapterInfo struct {
	adlAdapterInfoBase
	XScreenNum        int32
	DrvIndex          int32
	XScreenConfigName [256]byte
}
