package occluder

import (
	"fmt"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// Target receives occluder buffers. Implementations must not let an upload
// overlap a draw that reads the same slot, and must be comparable so a
// Binder can tell targets apart.
type Target interface {
	UploadPoints(slot int, data []float32) error
	UploadIndices(slot int, data []int32) error
}

// Uniforms are the per-draw values that travel with the buffers.
type Uniforms struct {
	// ObjTransform maps object-space points into the space shaded points
	// live in (view space), i.e. modelview · model.
	ObjTransform math3d.Mat4
	ObjTriangles int
}

// Binder uploads occluder geometry to a Target, skipping uploads when the
// geometry has not changed since the last one to that same target.
type Binder struct {
	PointsSlot    int
	TrianglesSlot int

	buffers   *Buffers
	target    Target
	version   uint64
	uploaded  uint64
	uploads   int
	triangles int
}

// NewBinder returns a binder using the standard slots.
func NewBinder() *Binder {
	return &Binder{PointsSlot: SlotPoints, TrianglesSlot: SlotTriangles}
}

// Set replaces the occluder geometry. The next Bind uploads it.
func (b *Binder) Set(buf *Buffers) {
	b.buffers = buf
	b.version++
}

// Touch marks the current geometry as modified in place.
func (b *Binder) Touch() {
	b.version++
}

// Buffers returns the geometry last passed to Set.
func (b *Binder) Buffers() *Buffers {
	return b.buffers
}

// Uploads returns how many times geometry has been sent to a target.
func (b *Binder) Uploads() int {
	return b.uploads
}

// Bind validates the geometry and uploads it to t if it changed or t is not
// the target of the previous upload.
func (b *Binder) Bind(t Target) error {
	if b.buffers == nil {
		return ErrEmpty
	}
	if b.uploads > 0 && b.uploaded == b.version && b.target == t {
		return nil
	}
	if err := b.buffers.Validate(); err != nil {
		return fmt.Errorf("validate occluder: %w", err)
	}
	points, indices := b.buffers.Pack()
	if err := t.UploadPoints(b.PointsSlot, points); err != nil {
		return fmt.Errorf("upload points: %w", err)
	}
	if err := t.UploadIndices(b.TrianglesSlot, indices); err != nil {
		return fmt.Errorf("upload indices: %w", err)
	}
	b.target = t
	b.uploaded = b.version
	b.uploads++
	b.triangles = b.buffers.TriangleCount()
	return nil
}

// Uniforms returns the per-draw uniforms for an occluder placed by model
// and viewed through modelView. The triangle count is the one last uploaded.
func (b *Binder) Uniforms(modelView, model math3d.Mat4) Uniforms {
	return Uniforms{
		ObjTransform: modelView.Mul(model),
		ObjTriangles: b.triangles,
	}
}
