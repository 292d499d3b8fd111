package models

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/taigrr/penumbra/pkg/math3d"
)

// GLTFLoader loads glTF and GLB files.
type GLTFLoader struct {
	// CalculateNormals fills in normals when the file has none.
	CalculateNormals bool
	SmoothNormals    bool
	// Textures decodes the base colour texture of each material.
	Textures bool
}

// NewGLTFLoader returns a loader that computes smooth normals and decodes
// textures.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
		Textures:         true,
	}
}

// LoadGLB loads a glTF or GLB file with the default loader.
func LoadGLB(path string) (*Mesh, error) {
	return NewGLTFLoader().Load(path)
}

// Load reads every triangle primitive of every mesh in the document into
// one Mesh.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	mesh := NewMesh(filepath.Base(path))
	mesh.Materials = l.materials(doc, filepath.Dir(path))
	mesh.UVs = true

	hasNormals := true
	for _, m := range doc.Meshes {
		for _, prim := range m.Primitives {
			n, uv, err := readPrimitive(doc, prim, mesh)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
			}
			hasNormals = hasNormals && n
			mesh.UVs = mesh.UVs && uv
		}
	}
	if len(mesh.Faces) == 0 {
		return nil, fmt.Errorf("load %s: no triangles", path)
	}

	if l.CalculateNormals && !hasNormals {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}
	mesh.CalculateBounds()
	return mesh, nil
}

// readPrimitive appends one primitive and reports whether it carried
// normals and texture coordinates. Non-triangle primitives are skipped.
func readPrimitive(doc *gltf.Document, prim *gltf.Primitive, mesh *Mesh) (normals, uvs bool, err error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return true, true, nil
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return true, true, nil
	}
	pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return false, false, fmt.Errorf("read positions: %w", err)
	}
	var norm [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if norm, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return false, false, fmt.Errorf("read normals: %w", err)
		}
	}
	var tex [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if tex, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return false, false, fmt.Errorf("read uvs: %w", err)
		}
	}

	material := -1
	if prim.Material != nil {
		material = *prim.Material
	}
	base := len(mesh.Vertices)
	for i, p := range pos {
		v := MeshVertex{Position: vec3(p)}
		if i < len(norm) {
			v.Normal = vec3(norm[i])
		}
		if i < len(tex) {
			// glTF puts v=0 at the top of the image.
			v.UV = math3d.V2(float64(tex[i][0]), 1-float64(tex[i][1]))
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return false, false, fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(pos))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		mesh.Faces = append(mesh.Faces, Face{
			V:        [3]int{base + int(indices[i]), base + int(indices[i+1]), base + int(indices[i+2])},
			Material: material,
		})
	}
	return len(norm) == len(pos), len(tex) == len(pos), nil
}

func vec3(p [3]float32) math3d.Vec3 {
	return math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))
}

func (l *GLTFLoader) materials(doc *gltf.Document, dir string) []Material {
	out := make([]Material, len(doc.Materials))
	for i, m := range doc.Materials {
		out[i] = Material{Name: m.Name, BaseColor: [4]float64{1, 1, 1, 1}}
		pbr := m.PBRMetallicRoughness
		if pbr == nil {
			continue
		}
		if pbr.BaseColorFactor != nil {
			out[i].BaseColor = *pbr.BaseColorFactor
		}
		if l.Textures && pbr.BaseColorTexture != nil {
			// A texture that fails to decode leaves the material untextured.
			out[i].BaseMap, _ = decodeTexture(doc, pbr.BaseColorTexture.Index, dir)
		}
	}
	return out
}

func decodeTexture(doc *gltf.Document, texture int, dir string) (image.Image, error) {
	if texture < 0 || texture >= len(doc.Textures) || doc.Textures[texture].Source == nil {
		return nil, fmt.Errorf("texture %d has no image", texture)
	}
	data, err := imageBytes(doc, *doc.Textures[texture].Source, dir)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func imageBytes(doc *gltf.Document, idx int, dir string) ([]byte, error) {
	if idx < 0 || idx >= len(doc.Images) {
		return nil, fmt.Errorf("image %d out of range", idx)
	}
	img := doc.Images[idx]
	if img.BufferView != nil {
		bv := doc.BufferViews[*img.BufferView]
		buf := doc.Buffers[bv.Buffer]
		end := bv.ByteOffset + bv.ByteLength
		if end > len(buf.Data) {
			return nil, fmt.Errorf("image %d: buffer view past end of buffer", idx)
		}
		return buf.Data[bv.ByteOffset:end], nil
	}
	if img.URI == "" {
		return nil, fmt.Errorf("image %d has no data", idx)
	}
	data, err := os.ReadFile(filepath.Join(dir, img.URI))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// LoadGLBWithTexture loads a GLB file and returns the mesh plus the first
// material texture, which may be nil.
func LoadGLBWithTexture(path string) (*Mesh, image.Image, error) {
	mesh, err := LoadGLB(path)
	if err != nil {
		return nil, nil, err
	}
	return mesh, mesh.BaseMap(), nil
}
