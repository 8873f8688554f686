package device

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"
)

// cudaCandidateLibraries lists, per platform, the filenames tried (in
// order) to locate NVIDIA's device management library. The first one that
// successfully dlopens wins.
var cudaCandidateLibraries = map[string][]string{
	"linux":   {"libnvidia-ml.so.1", "libnvidia-ml.so"},
	"windows": {"nvml.dll"},
}

// cudaLibrary binds the small slice of NVML entry points device inventory
// needs, loaded dynamically via purego rather than linked at build time
// (the library may not exist on a CPU-only host).
type cudaLibrary struct {
	handle uintptr

	nvmlInit                   func() int32
	nvmlDeviceGetCount          func(*uint32) int32
	nvmlDeviceGetHandleByIndex  func(uint32, *uintptr) int32
	nvmlDeviceGetMemoryInfo     func(uintptr, *nvmlMemory) int32
	nvmlDeviceGetName           func(uintptr, *byte, uint32) int32
	nvmlSystemGetDriverVersion  func(*byte, uint32) int32
	nvmlDeviceGetPowerManagementLimit func(uintptr, *uint32) int32
}

type nvmlMemory struct {
	Total uint64
	Free  uint64
	Used  uint64
}

// LoadCUDALibrary attempts to dlopen the NVML library from the
// platform-appropriate candidate list, returning the first library that
// loads successfully. Returns an error (not a panic) when no candidate is
// found, so callers can treat "no vendor library" as an ordinary,
// expected outcome on CPU-only hosts.
func LoadCUDALibrary() (Library, error) {
	candidates := cudaCandidateLibraries[runtime.GOOS]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("device: no known NVML candidate library for GOOS=%s", runtime.GOOS)
	}

	var handle uintptr
	var lastErr error
	for _, name := range candidates {
		h, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			handle = h
			lastErr = nil
			break
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("device: failed to load NVML from any candidate %v: %w", candidates, lastErr)
	}

	lib := &cudaLibrary{handle: handle}
	purego.RegisterLibFunc(&lib.nvmlInit, handle, "nvmlInit_v2")
	purego.RegisterLibFunc(&lib.nvmlDeviceGetCount, handle, "nvmlDeviceGetCount_v2")
	purego.RegisterLibFunc(&lib.nvmlDeviceGetHandleByIndex, handle, "nvmlDeviceGetHandleByIndex_v2")
	purego.RegisterLibFunc(&lib.nvmlDeviceGetMemoryInfo, handle, "nvmlDeviceGetMemoryInfo")
	purego.RegisterLibFunc(&lib.nvmlDeviceGetName, handle, "nvmlDeviceGetName")
	purego.RegisterLibFunc(&lib.nvmlSystemGetDriverVersion, handle, "nvmlSystemGetDriverVersion")
	purego.RegisterLibFunc(&lib.nvmlDeviceGetPowerManagementLimit, handle, "nvmlDeviceGetPowerManagementLimit")

	if rc := lib.nvmlInit(); rc != 0 {
		return nil, fmt.Errorf("device: nvmlInit failed with code %d", rc)
	}
	return lib, nil
}

func (l *cudaLibrary) Vendor() Vendor { return VendorCUDA }

func (l *cudaLibrary) DeviceCount() (int, error) {
	var n uint32
	if rc := l.nvmlDeviceGetCount(&n); rc != 0 {
		return 0, fmt.Errorf("nvmlDeviceGetCount failed with code %d", rc)
	}
	return int(n), nil
}

func (l *cudaLibrary) DeviceInfo(ordinal int) (uint64, string, *uint32, string, error) {
	var handle uintptr
	if rc := l.nvmlDeviceGetHandleByIndex(uint32(ordinal), &handle); rc != 0 {
		return 0, "", nil, "", fmt.Errorf("nvmlDeviceGetHandleByIndex(%d) failed with code %d", ordinal, rc)
	}

	var mem nvmlMemory
	if rc := l.nvmlDeviceGetMemoryInfo(handle, &mem); rc != 0 {
		return 0, "", nil, "", fmt.Errorf("nvmlDeviceGetMemoryInfo(%d) failed with code %d", ordinal, rc)
	}

	nameBuf := make([]byte, 96)
	var name string
	if rc := l.nvmlDeviceGetName(handle, &nameBuf[0], uint32(len(nameBuf))); rc == 0 {
		name = cString(nameBuf)
	}

	var powerLimit *uint32
	var pl uint32
	if rc := l.nvmlDeviceGetPowerManagementLimit(handle, &pl); rc == 0 {
		powerLimit = &pl
	}

	driverBuf := make([]byte, 80)
	var driver string
	if rc := l.nvmlSystemGetDriverVersion(&driverBuf[0], uint32(len(driverBuf))); rc == 0 {
		driver = cString(driverBuf)
	}

	return mem.Total, name, powerLimit, driver, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
