// Package models holds triangle meshes: the Mesh type shared by the
// rasterizer and the occluder buffers, GLB and OBJ loaders, and built-in
// and procedural shapes.
package models

import (
	"image"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Name      string
	Vertices  []MeshVertex
	Faces     []Face
	Materials []Material

	// UVs is set when the vertices carry texture coordinates.
	UVs bool

	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// MeshVertex holds all vertex attributes.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Face is a counter-clockwise triangle.
type Face struct {
	V        [3]int
	Material int // -1 for none
}

// Material is the part of a glTF material the shader can use.
type Material struct {
	Name      string
	BaseColor [4]float64
	BaseMap   image.Image
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		return
	}
	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

func (m *Mesh) TriangleCount() int { return len(m.Faces) }
func (m *Mesh) VertexCount() int   { return len(m.Vertices) }
func (m *Mesh) HasUVs() bool       { return m.UVs }

func (m *Mesh) faceNormal(f Face) math3d.Vec3 {
	v0 := m.Vertices[f.V[0]].Position
	v1 := m.Vertices[f.V[1]].Position
	v2 := m.Vertices[f.V[2]].Position
	return v1.Sub(v0).Cross(v2.Sub(v0))
}

// CalculateNormals assigns each face normal to its vertices. Shared
// vertices end up with the normal of the last face that uses them.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := m.faceNormal(f).Normalize()
		for _, vi := range f.V {
			m.Vertices[vi].Normal = n
		}
	}
}

// CalculateSmoothNormals sets each vertex normal to the area-weighted
// average of its faces.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}
	for _, f := range m.Faces {
		n := m.faceNormal(f)
		for _, vi := range f.V {
			m.Vertices[vi].Normal = m.Vertices[vi].Normal.Add(n)
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// Transform applies mat to positions and its normal matrix to normals.
func (m *Mesh) Transform(mat math3d.Mat4) {
	nm := mat.NormalMatrix()
	for i := range m.Vertices {
		m.Vertices[i].Position = mat.MulVec3(m.Vertices[i].Position)
		m.Vertices[i].Normal = nm.MulVec3Dir(m.Vertices[i].Normal).Normalize()
	}
	m.CalculateBounds()
}

// Clone creates a deep copy of the mesh geometry.
func (m *Mesh) Clone() *Mesh {
	c := *m
	c.Vertices = append([]MeshVertex(nil), m.Vertices...)
	c.Faces = append([]Face(nil), m.Faces...)
	c.Materials = append([]Material(nil), m.Materials...)
	return &c
}

// GetVertex implements render.MeshRenderer and occluder.Source.
func (m *Mesh) GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2) {
	v := m.Vertices[i]
	return v.Position, v.Normal, v.UV
}

// GetFace implements render.MeshRenderer and occluder.Source.
func (m *Mesh) GetFace(i int) [3]int {
	return m.Faces[i].V
}

// GetMaterial returns material i, or nil when i is out of range.
func (m *Mesh) GetMaterial(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}

// BaseColor returns the base colour of the first material, if any.
func (m *Mesh) BaseColor() (math3d.Vec3, bool) {
	if len(m.Materials) == 0 {
		return math3d.Vec3{}, false
	}
	c := m.Materials[0].BaseColor
	return math3d.V3(c[0], c[1], c[2]), true
}

// BaseMap returns the first material texture, or nil.
func (m *Mesh) BaseMap() image.Image {
	for _, mat := range m.Materials {
		if mat.BaseMap != nil {
			return mat.BaseMap
		}
	}
	return nil
}

// GetBounds implements render.BoundedMeshRenderer.
func (m *Mesh) GetBounds() (min, max math3d.Vec3) {
	return m.BoundsMin, m.BoundsMax
}
