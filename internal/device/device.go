// Package device describes the compute devices a training run fans out to.
//
// All devices in this package are logical: a device is a slot that owns one
// model replica and one data shard during a multi-device epoch. The first
// device of a list is the primary device, onto which every replica's
// gradients are moved before accumulation.
package device

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Kind identifies the hardware family of a device.
type Kind int

const (
	// CPU is a host CPU worker.
	CPU Kind = iota
)

// String returns the short name used in device identifiers.
func (k Kind) String() string {
	switch k {
	case CPU:
		return "cpu"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Device is a value identifying one compute device.
type Device struct {
	Kind  Kind
	Index int
}

// NewCPU returns the CPU device with the given index.
func NewCPU(index int) Device {
	return Device{Kind: CPU, Index: index}
}

// String returns the device identifier, e.g. "cpu:0".
func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.Kind, d.Index)
}

// Discover returns n CPU devices. If n <= 0, one device per logical core
// is returned.
func Discover(n int) []Device {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	devices := make([]Device, n)
	for i := range devices {
		devices[i] = NewCPU(i)
	}
	return devices
}

// Primary returns the device gradients are merged onto.
// It panics if devices is empty.
func Primary(devices []Device) Device {
	if len(devices) == 0 {
		panic("device: primary requested from an empty device list")
	}
	return devices[0]
}

// HostInfo summarizes the host CPU.
type HostInfo struct {
	Brand          string
	PhysicalCores  int
	LogicalCores   int
	ThreadsPerCore int
	Features       []string
}

// simdFeatures are the features worth reporting for numeric workloads.
var simdFeatures = []cpuid.FeatureID{
	cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD,
}

// Info reports the host CPU as seen by cpuid.
func Info() HostInfo {
	info := HostInfo{
		Brand:          strings.TrimSpace(cpuid.CPU.BrandName),
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
	}
	if info.LogicalCores == 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f) {
			info.Features = append(info.Features, f.String())
		}
	}
	return info
}
