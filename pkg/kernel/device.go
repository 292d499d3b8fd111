// Package kernel is the data-parallel device side of the shadow pipeline:
// slot storage for occluder buffers and a float32 fragment program that
// scans every bound triangle per sample.
package kernel

import (
	"fmt"
	"slices"
	"sync"
)

// Device holds buffers bound to numbered slots. Uploads take the write lock
// and draws hold the read lock for their whole duration, so an upload never
// overlaps a draw.
type Device struct {
	mu      sync.RWMutex
	floats  map[int][]float32
	ints    map[int][]int32
	uploads int
}

// NewDevice returns an empty device.
func NewDevice() *Device {
	return &Device{
		floats: make(map[int][]float32),
		ints:   make(map[int][]int32),
	}
}

// UploadPoints implements occluder.Target. data is copied.
func (d *Device) UploadPoints(slot int, data []float32) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("slot %d: %d floats is not a whole number of points", slot, len(data))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.floats[slot] = slices.Clone(data)
	d.uploads++
	return nil
}

// UploadIndices implements occluder.Target. data is copied.
func (d *Device) UploadIndices(slot int, data []int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ints[slot] = slices.Clone(data)
	d.uploads++
	return nil
}

// Uploads returns how many uploads the device has accepted.
func (d *Device) Uploads() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.uploads
}

// view is what a draw reads. It is only valid while the read lock is held.
type view struct {
	points  []float32
	indices []int32
}

func (d *Device) view(pointsSlot, trianglesSlot int) view {
	return view{points: d.floats[pointsSlot], indices: d.ints[trianglesSlot]}
}
