//go:build windows

package gpu

var (
	defaultNVMLPaths = []string{
		"nvml.dll",
		`C:\Program Files\NVIDIA Corporation\NVSMI\nvml.dll`,
	}
	defaultADLPaths = []string{"atiadlxx.dll", "atiadlxy.dll"}
)
