// Package device enumerates GPU devices through a dynamically loaded
// vendor management library and builds the aggregate VRAM picture the
// memory estimator and local-server supervisor size themselves against
// (spec §4.E).
package device

import (
	"fmt"

	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryDevice)

// Vendor identifies which GPU management library backs a device library
// binding. Each vendor reserves a fixed overhead off available VRAM,
// parameterized per vendor rather than assuming "the common vendor"
// reserves the same amount as every other.
type Vendor string

const (
	VendorCUDA   Vendor = "cuda"
	VendorROCm   Vendor = "rocm"
	VendorMetal  Vendor = "metal"
)

// reservationBytes is the fixed VRAM overhead withheld from a device's
// reported total, per vendor.
var reservationBytes = map[Vendor]uint64{
	VendorCUDA:  500 * 1024 * 1024, // matches nvidia-smi's driver/context overhead estimate
	VendorROCm:  384 * 1024 * 1024,
	VendorMetal: 256 * 1024 * 1024, // unified memory: lower, shared with the OS
}

// ComputeRole marks whether a device participates in attention+FFN compute
// or only stores offloaded expert weights.
type ComputeRole int

const (
	RoleCompute ComputeRole = iota
	RoleOffloadOnly
)

// Spec is one enumerated device.
type Spec struct {
	Ordinal         int
	AvailableVRAM   uint64
	Name            string
	PowerLimitWatts *uint32
	DriverVersion   string
	Role            ComputeRole
}

// Library abstracts the vendor-specific dynamic binding used to enumerate
// devices. A concrete binding (see cuda.go) wraps purego-loaded symbols
// from the vendor's management library.
type Library interface {
	Vendor() Vendor
	DeviceCount() (int, error)
	DeviceInfo(ordinal int) (rawTotalVRAM uint64, name string, powerLimitWatts *uint32, driverVersion string, err error)
}

// Inventory is the enumerated device set for one vendor library.
type Inventory struct {
	Vendor         Vendor
	Devices        []Spec
	MainOrdinal    int
	TotalAvailable uint64
}

// Options configure enumeration.
type Options struct {
	// Ordinals restricts enumeration to these device ordinals. Empty means
	// "enumerate 0..DeviceCount()".
	Ordinals []int
	// MainOrdinal, if non-nil, pins main-device selection to this ordinal;
	// it must be present among the enumerated devices unless ErrorOnIssue
	// is false, in which case selection falls back to max-available-VRAM.
	MainOrdinal  *int
	ErrorOnIssue bool
}

// Enumerate builds an Inventory from lib according to opts.
//
// Three distinct failure shapes are logged differently, since a
// "management library absent" host (e.g. CPU-only) is not an error
// condition the way a present-but-malfunctioning library is:
//   - the library itself could not be loaded: callers handle this before
//     calling Enumerate (see LoadCUDALibrary) and simply skip device discovery.
//   - the library loaded but reports zero devices: logged as a single
//     info line, not a per-device warning.
//   - the library loaded and reports N>0 devices, but a per-device probe
//     failed: logged per device, and either fails fast or is skipped
//     depending on ErrorOnIssue.
func Enumerate(lib Library, opts Options) (*Inventory, error) {
	count, err := lib.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("%w: device count: %v", pkgerrors.ErrValidation, err)
	}
	if count == 0 {
		log.Infow("vendor library loaded but reports zero devices", "vendor", lib.Vendor())
	}

	ordinals := opts.Ordinals
	if len(ordinals) == 0 {
		ordinals = make([]int, count)
		for i := range ordinals {
			ordinals[i] = i
		}
	}

	inv := &Inventory{Vendor: lib.Vendor()}
	for _, ord := range ordinals {
		total, name, power, driver, err := lib.DeviceInfo(ord)
		if err != nil {
			if opts.ErrorOnIssue {
				return nil, fmt.Errorf("%w: device %d: %v", pkgerrors.ErrValidation, ord, err)
			}
			log.Warnw("device probe failed, skipping", "vendor", lib.Vendor(), "ordinal", ord, "error", err)
			continue
		}
		if total == 0 {
			log.Warnw("device reports zero VRAM, skipping", "vendor", lib.Vendor(), "ordinal", ord)
			continue
		}
		reservation := reservationBytes[lib.Vendor()]
		available := uint64(0)
		if total > reservation {
			available = total - reservation
		}
		inv.Devices = append(inv.Devices, Spec{
			Ordinal:       ord,
			AvailableVRAM: available,
			Name:          name,
			PowerLimitWatts: power,
			DriverVersion: driver,
			Role:          RoleCompute,
		})
	}

	if len(inv.Devices) == 0 {
		return nil, fmt.Errorf("%w: no usable devices found for vendor %s", pkgerrors.ErrValidation, lib.Vendor())
	}

	inv.MainOrdinal = inv.selectMain(opts)
	for _, d := range inv.Devices {
		inv.TotalAvailable += d.AvailableVRAM
	}
	return inv, nil
}

func (inv *Inventory) selectMain(opts Options) int {
	if opts.MainOrdinal != nil {
		for _, d := range inv.Devices {
			if d.Ordinal == *opts.MainOrdinal {
				return d.Ordinal
			}
		}
		if opts.ErrorOnIssue {
			panic(fmt.Sprintf("device: main ordinal %d not found among enumerated devices", *opts.MainOrdinal))
		}
		log.Warnw("requested main ordinal not found, falling back to max-available-VRAM device", "ordinal", *opts.MainOrdinal)
	}

	best := inv.Devices[0]
	for _, d := range inv.Devices[1:] {
		if d.AvailableVRAM > best.AvailableVRAM {
			best = d
		}
	}
	return best.Ordinal
}
