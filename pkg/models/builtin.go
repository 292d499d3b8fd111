package models

import "github.com/taigrr/penumbra/pkg/math3d"

// Builtin names accepted by Builtin.
const (
	BuiltinCube   = "cube"
	BuiltinSquare = "square"
)

// Builtin returns a built-in mesh by name.
func Builtin(name string) (*Mesh, bool) {
	switch name {
	case BuiltinCube:
		return Cube(1), true
	case BuiltinSquare:
		return Square(), true
	}
	return nil, false
}

// cubeFaces lists each face as its outward normal and two tangents whose
// cross product is that normal.
var cubeFaces = [6][3]math3d.Vec3{
	{{X: 1}, {Z: -1}, {Y: 1}},
	{{X: -1}, {Z: 1}, {Y: 1}},
	{{Y: 1}, {X: 1}, {Z: -1}},
	{{Y: -1}, {X: 1}, {Z: 1}},
	{{Z: 1}, {X: 1}, {Y: 1}},
	{{Z: -1}, {X: -1}, {Y: 1}},
}

var quadCorners = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// Cube returns an axis-aligned cube of edge size centered on the origin.
// Each face has its own four vertices so normals stay flat.
func Cube(size float64) *Mesh {
	h := size / 2
	m := NewMesh(BuiltinCube)
	m.UVs = true
	for _, f := range cubeFaces {
		n, u, v := f[0], f[1], f[2]
		base := len(m.Vertices)
		for _, c := range quadCorners {
			m.Vertices = append(m.Vertices, MeshVertex{
				Position: n.Add(u.Scale(c[0])).Add(v.Scale(c[1])).Scale(h),
				Normal:   n,
				UV:       math3d.V2((c[0]+1)/2, (c[1]+1)/2),
			})
		}
		m.addQuad(base, base+1, base+2, base+3, -1)
	}
	m.CalculateBounds()
	return m
}

// Square returns the [-1,1] square in the xz plane facing +y.
func Square() *Mesh {
	m := NewMesh(BuiltinSquare)
	m.UVs = true
	for _, c := range [4][2]float64{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}} {
		m.Vertices = append(m.Vertices, MeshVertex{
			Position: math3d.V3(c[0], 0, c[1]),
			Normal:   math3d.Up(),
			UV:       math3d.V2((c[0]+1)/2, (1-c[1])/2),
		})
	}
	m.addQuad(0, 1, 2, 3, -1)
	m.CalculateBounds()
	return m
}

// addQuad appends a counter-clockwise quad as two triangles.
func (m *Mesh) addQuad(a, b, c, d, material int) {
	m.Faces = append(m.Faces,
		Face{V: [3]int{a, b, c}, Material: material},
		Face{V: [3]int{a, c, d}, Material: material},
	)
}
