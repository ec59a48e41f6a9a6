// Package mmap maps physical register blocks into the process for direct
// 32-bit access. The refresh engine's port writes go through these mappings,
// so the accessors are plain pointer stores with no bounds re-checking
// beyond the slice itself.
package mmap

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a mapped window onto a device or file. Offsets passed to the
// accessors are relative to the base requested at mapping time, which need
// not be page aligned.
type Region struct {
	mem  []byte
	skew uintptr // distance from the page-aligned map start to the base
}

// Map maps size bytes of physical address space at base through /dev/mem.
// Requires CAP_SYS_RAWIO or root.
func Map(base, size uintptr) (*Region, error) {
	return MapFile("/dev/mem", base, size)
}

// MapFile maps size bytes of path starting at base. The file is opened with
// O_SYNC so stores reach the device without write buffering.
func MapFile(path string, base, size uintptr) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}
	defer f.Close()

	page := uintptr(unix.Getpagesize())
	aligned := base &^ (page - 1)
	skew := base - aligned
	mem, err := unix.Mmap(int(f.Fd()), int64(aligned), int(size+skew),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: map %s base %#x size %#x: %w", path, base, size, err)
	}
	return &Region{mem: mem, skew: skew}, nil
}

// Close unmaps the region. The accessors must not be used afterwards.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	return unix.Munmap(mem)
}

// Read32 loads the 32-bit register at offset.
func (r *Region) Read32(offset uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(&r.mem[r.skew+offset]))
}

// Write32 stores v to the 32-bit register at offset.
func (r *Region) Write32(offset uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(&r.mem[r.skew+offset])) = v
}

// Read8 loads the byte at offset.
func (r *Region) Read8(offset uintptr) uint8 {
	return r.mem[r.skew+offset]
}

// Write8 stores v to the byte at offset.
func (r *Region) Write8(offset uintptr, v uint8) {
	r.mem[r.skew+offset] = v
}
