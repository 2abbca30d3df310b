//go:build !windows

package gpu

var (
	defaultNVMLPaths = []string{
		"libnvidia-ml.so.1",
		"/usr/lib/x86_64-linux-gnu/libnvidia-ml.so.1",
	}
	defaultADLPaths = []string{"libatiadlxx.so"}
)
