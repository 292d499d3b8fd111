package models

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/udhos/gwob"
)

// LoadOBJ loads a Wavefront OBJ file. Quads and polygons are fanned into
// triangles by the parser. Materials come from the referenced mtllib when
// it can be found next to the file.
func LoadOBJ(path string) (*Mesh, error) {
	opts := objOptions()
	obj, err := gwob.NewObjFromFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	mesh, err := fromObj(filepath.Base(path), obj)
	if err != nil {
		return nil, err
	}
	if obj.Mtllib != "" {
		lib, err := gwob.ReadMaterialLibFromFile(filepath.Join(filepath.Dir(path), obj.Mtllib), opts)
		if err == nil {
			mesh.Materials = objMaterials(obj, lib, filepath.Dir(path))
		}
	}
	return mesh, nil
}

// ReadOBJ parses OBJ text from r. Materials are not resolved.
func ReadOBJ(name string, r io.Reader) (*Mesh, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	obj, err := gwob.NewObjFromBuf(name, buf, objOptions())
	if err != nil {
		return nil, fmt.Errorf("parse obj: %w", err)
	}
	return fromObj(name, obj)
}

func objOptions() *gwob.ObjParserOptions {
	return &gwob.ObjParserOptions{Logger: func(string) {}}
}

// fromObj copies the parser's interleaved vertex array. Offsets are in
// bytes of float32.
func fromObj(name string, obj *gwob.Obj) (*Mesh, error) {
	stride := obj.StrideSize / 4
	if stride == 0 || len(obj.Indices) < 3 {
		return nil, fmt.Errorf("load %s: no triangles", name)
	}
	pos := obj.StrideOffsetPosition / 4
	norm := obj.StrideOffsetNormal / 4
	tex := obj.StrideOffsetTexture / 4

	mesh := NewMesh(name)
	mesh.UVs = obj.TextCoordFound
	n := len(obj.Coord) / stride
	mesh.Vertices = make([]MeshVertex, n)
	for i := range n {
		base := i * stride
		v := &mesh.Vertices[i]
		v.Position = math3d.V3(obj.Coord64(base+pos), obj.Coord64(base+pos+1), obj.Coord64(base+pos+2))
		if obj.NormCoordFound {
			v.Normal = math3d.V3(obj.Coord64(base+norm), obj.Coord64(base+norm+1), obj.Coord64(base+norm+2)).Normalize()
		}
		if obj.TextCoordFound {
			v.UV = math3d.V2(obj.Coord64(base+tex), obj.Coord64(base+tex+1))
		}
	}

	for gi, g := range obj.Groups {
		for f := 0; f+2 < g.IndexCount; f += 3 {
			i := g.IndexBegin + f
			face := Face{V: [3]int{obj.Indices[i], obj.Indices[i+1], obj.Indices[i+2]}, Material: -1}
			if g.Usemtl != "" {
				face.Material = gi
			}
			if face.V[0] >= n || face.V[1] >= n || face.V[2] >= n {
				return nil, fmt.Errorf("load %s: face %d index out of range", name, len(mesh.Faces))
			}
			mesh.Faces = append(mesh.Faces, face)
		}
	}
	if !obj.NormCoordFound {
		mesh.CalculateSmoothNormals()
	}
	mesh.CalculateBounds()
	return mesh, nil
}

// objMaterials builds one Material per group so Face.Material can be the
// group index.
func objMaterials(obj *gwob.Obj, lib gwob.MaterialLib, dir string) []Material {
	out := make([]Material, len(obj.Groups))
	for i, g := range obj.Groups {
		out[i] = Material{Name: g.Usemtl, BaseColor: [4]float64{1, 1, 1, 1}}
		m, ok := lib.Lib[g.Usemtl]
		if !ok {
			continue
		}
		out[i].BaseColor = [4]float64{float64(m.Kd[0]), float64(m.Kd[1]), float64(m.Kd[2]), 1}
		if m.MapKd != "" {
			out[i].BaseMap, _ = decodeImageFile(filepath.Join(dir, m.MapKd))
		}
	}
	return out
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// Load picks the loader by file extension.
func Load(path string) (*Mesh, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path)
	case ".glb", ".gltf":
		return LoadGLB(path)
	default:
		return nil, fmt.Errorf("load model %s: unsupported format", path)
	}
}
