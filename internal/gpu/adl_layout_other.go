//go:build !linux

package gpu

type adlAdapterInfo struct {
	adlAdapterInfoBase
}
