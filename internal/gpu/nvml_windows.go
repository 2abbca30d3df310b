//go:build windows

package gpu

func openNVML(paths []string) (NVMLLibrary, error) {
	return loadNVML(paths)
}
