// Package gpu runs the shadow fragment program on an OpenGL 4.3 device.
// The occluder buffers live in shader storage blocks bound at the occluder
// slots, and every fragment scans them for shadow rays the way the CPU
// kernel does.
//
// The device backend needs cgo and is built with the gl tag. Shader
// generation and the host-side packing in this file build everywhere.
package gpu

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/taigrr/penumbra/pkg/geom"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/shading"
)

const vertexSource = `#version 430 core
layout(location = 0) in vec3 aPos;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec2 aUV;

uniform mat4 modelView;
uniform mat4 persp;

out vec3 vPos;
out vec3 vNormal;
out vec2 vUV;

void main() {
	vec4 p = modelView * vec4(aPos, 1.0);
	vPos = p.xyz;
	vNormal = transpose(inverse(mat3(modelView))) * aNormal;
	vUV = aUV;
	gl_Position = persp * p;
}
`

var fragmentTemplate = template.Must(template.New("fragment").Parse(`#version 430 core
#define MAX_LIGHTS {{.MaxLights}}

layout(std430, binding = {{.PointsSlot}}) readonly buffer ObjPoints { vec4 objPoints[]; };
layout(std430, binding = {{.TrianglesSlot}}) readonly buffer ObjIndices { int objIndices[]; };

in vec3 vPos;
in vec3 vNormal;
in vec2 vUV;
out vec4 fragColor;

uniform mat4 objTransform;
uniform int objTriangles;

uniform vec3 light;
uniform vec3 lights[MAX_LIGHTS];
uniform int numLights;

uniform float dim;
uniform float opacity;
uniform vec3 defaultColor;
uniform bool useDefaultColor;
uniform bool useLight;
uniform bool shadowing;
uniform bool useTexture;
uniform bool useTint;
uniform bool fwdFacing;
uniform bool faceted;
uniform bool hasUV;
uniform sampler2D tex;

uniform int samples;
uniform float radius;
uniform float shadowFloor;
uniform float epsilon;
uniform bool includeCenter;
uniform bool symmetric;
uniform int strategy;
uniform uint frame;

const vec3 FACET_COLOR = vec3({{.Facet}});
const float PARALLEL_EPS = {{.ParallelEps}};
const float SPECULAR_EXPONENT = {{.Specular}}.0;

uint hashUint(uint x) {
	x += x << 10u;
	x ^= x >> 6u;
	x += x << 3u;
	x ^= x >> 11u;
	x += x << 15u;
	return x;
}

uint hash3(uint x, uint y, uint z) {
	return hashUint(x ^ hashUint(y) ^ hashUint(z));
}

float floatConstruct(uint m) {
	m &= 0x007FFFFFu;
	m |= 0x3F800000u;
	return uintBitsToFloat(m) - 1.0;
}

vec3 rand3(vec3 seed) {
	if (strategy == 1) {
		uvec3 b = floatBitsToUint(seed);
		return vec3(
			floatConstruct(hash3(b.x, b.y, b.z ^ hashUint(0u))),
			floatConstruct(hash3(b.x, b.y, b.z ^ hashUint(1u))),
			floatConstruct(hash3(b.x, b.y, b.z ^ hashUint(2u))));
	}
	return vec3(
		fract(sin(dot(seed.xy, vec2(12.9898, 78.233))) * 43758.5453),
		fract(sin(dot(seed.xy, vec2(912.9898, 978.233))) * 943758.5453),
		fract(sin(dot(seed.xy, vec2(6912.0002, 6978.233))) * 6943758.3545));
}

vec3 jitter(vec3 l, vec3 r) {
	if (symmetric) {
		r = r * 2.0 - 1.0;
	}
	float len = length(r);
	if (len == 0.0 || isnan(len)) {
		return l;
	}
	return l + r * (radius / len);
}

int majorAxis(vec3 n) {
	vec3 a = abs(n);
	if (a.x > a.y) {
		return a.x > a.z ? 1 : 3;
	}
	return a.y > a.z ? 2 : 3;
}

vec2 project(vec3 p, int axis) {
	if (axis == 1) return p.yz;
	if (axis == 2) return p.xz;
	return p.xy;
}

float orient(vec2 a, vec2 b, vec2 c) {
	vec2 u = b - a;
	vec2 v = c - b;
	return u.x * v.y - u.y * v.x;
}

bool pointInTriangle(vec3 test, vec3 t1, vec3 t2, vec3 t3, int axis) {
	vec2 p = project(test, axis);
	vec2 a = project(t1, axis);
	vec2 b = project(t2, axis);
	vec2 c = project(t3, axis);
	if (orient(a, b, c) == 0.0) {
		return false;
	}
	float c1 = orient(p, a, b);
	float c2 = orient(p, b, c);
	float c3 = orient(p, c, a);
	return (c1 >= 0.0 && c2 >= 0.0 && c3 >= 0.0) || (c1 <= 0.0 && c2 <= 0.0 && c3 <= 0.0);
}

bool lineTriangle(vec3 a, vec3 b, vec3 p1, vec3 p2, vec3 p3) {
	vec3 n = cross(p2 - p1, p3 - p2);
	float l = length(n);
	if (l == 0.0 || isnan(l) || isinf(l)) {
		return false;
	}
	n /= l;
	float w = -dot(p1, n);
	vec3 axis = b - a;
	float pd = dot(axis, n);
	if (abs(pd) < PARALLEL_EPS) {
		return false;
	}
	float alpha = (-w - dot(a, n)) / pd;
	if (!(alpha >= 0.0 && alpha <= 1.0)) {
		return false;
	}
	return pointInTriangle(a + axis * alpha, p1, p2, p3, majorAxis(n));
}

bool occluded(vec3 a, vec3 b) {
	int n = min(objTriangles, objIndices.length() / 3);
	int npts = objPoints.length();
	for (int i = 0; i < n; i++) {
		ivec3 idx = ivec3(objIndices[3*i], objIndices[3*i+1], objIndices[3*i+2]);
		if (any(lessThan(idx, ivec3(0))) || any(greaterThanEqual(idx, ivec3(npts)))) {
			continue;
		}
		vec3 p1 = (objTransform * objPoints[idx.x]).xyz;
		vec3 p2 = (objTransform * objPoints[idx.y]).xyz;
		vec3 p3 = (objTransform * objPoints[idx.z]).xyz;
		if (lineTriangle(a, b, p1, p2, p3)) {
			return true;
		}
	}
	return false;
}

float shadowFactor(vec3 pos, vec2 coord) {
	vec3 start = pos + normalize(light - pos) * epsilon;
	int visible = 0;
	int total = 0;
	if (samples <= 0 || includeCenter) {
		total++;
		if (!occluded(start, light)) visible++;
	}
	for (int i = 0; i < samples; i++) {
		float k = float(i + 1);
		vec3 r = rand3(vec3(coord * k, float(frame)));
		total++;
		if (!occluded(start, jitter(light, r))) visible++;
	}
	return shadowFloor + (1.0 - shadowFloor) * float(visible) / float(total);
}

float intensity(vec3 n, vec3 e, vec3 p, vec3 l) {
	vec3 dir = normalize(l - p);
	float d = max(0.0, dot(n, dir));
	float s = max(0.0, dot(reflect(dir, n), e));
	return clamp(d + pow(s, SPECULAR_EXPONENT), 0.0, 1.0);
}

void main() {
	vec3 n = normalize(vNormal);
	if (faceted) {
		n = normalize(cross(dFdx(vPos), dFdy(vPos)));
	}
	if (fwdFacing && n.z < 0.0) {
		discard;
	}
	vec3 e = normalize(vPos);

	float in_ = 1.0;
	if (useLight) {
		if (numLights == 0) {
			in_ = intensity(n, e, vPos, light);
		} else {
			in_ = 0.0;
			for (int i = 0; i < numLights; i++) {
				in_ += intensity(n, e, vPos, lights[i]);
			}
			in_ = clamp(in_, 0.0, 1.0);
		}
		if (shadowing) {
			in_ *= shadowFactor(vPos, gl_FragCoord.xy);
		}
	}

	vec3 base = vec3(1.0);
	if (useTexture && hasUV) {
		base = texture(tex, vUV).rgb;
		if (useTint) {
			base *= defaultColor;
		}
	} else if (useDefaultColor) {
		base = defaultColor;
	} else if (faceted) {
		base = FACET_COLOR;
	}
	fragColor = vec4(base * dim * in_, opacity);
}
`))

// FragmentSource returns the fragment shader with storage blocks bound at
// the given occluder slots.
func FragmentSource(pointsSlot, trianglesSlot int) (string, error) {
	var buf bytes.Buffer
	fc := shading.FacetColor
	err := fragmentTemplate.Execute(&buf, map[string]any{
		"MaxLights":     shading.MaxLights,
		"PointsSlot":    pointsSlot,
		"TrianglesSlot": trianglesSlot,
		"Facet":         fmt.Sprintf("%g, %g, %g", fc.X, fc.Y, fc.Z),
		"ParallelEps":   fmt.Sprintf("%e", geom.ParallelEpsilon),
		"Specular":      shading.SpecularExponent,
	})
	if err != nil {
		return "", fmt.Errorf("fragment template: %w", err)
	}
	return buf.String(), nil
}

// DefaultFragmentSource binds the standard occluder slots.
func DefaultFragmentSource() (string, error) {
	return FragmentSource(occluder.SlotPoints, occluder.SlotTriangles)
}

// VertexSource returns the vertex shader.
func VertexSource() string { return vertexSource }

// vertexStride is position, normal and uv in float32s.
const vertexStride = 8

// interleave packs a mesh into one float32 vertex buffer and a uint32
// element buffer.
func interleave(m *models.Mesh) ([]float32, []uint32) {
	verts := make([]float32, 0, vertexStride*len(m.Vertices))
	for _, v := range m.Vertices {
		verts = append(verts,
			float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z),
			float32(v.Normal.X), float32(v.Normal.Y), float32(v.Normal.Z),
			float32(v.UV.X), float32(v.UV.Y))
	}
	elems := make([]uint32, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		elems = append(elems, uint32(f.V[0]), uint32(f.V[1]), uint32(f.V[2]))
	}
	return verts, elems
}

func mat32(m math3d.Mat4) [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

// bakeSize is the resolution textures without a native size are baked at.
const bakeSize = 256

// bake samples t at texel centres into RGBA8 rows, row 0 at v≈0, which is
// the order glTexImage2D expects for t=0 first.
func bake(t shading.Texture) (w, h int, pix []uint8) {
	w, h = bakeSize, bakeSize
	if rt, ok := t.(*render.Texture); ok && rt.Width > 0 && rt.Height > 0 {
		w, h = rt.Width, rt.Height
	}
	pix = make([]uint8, 0, 4*w*h)
	for y := range h {
		v := (float64(y) + 0.5) / float64(h)
		for x := range w {
			u := (float64(x) + 0.5) / float64(w)
			c := t.SampleRGB(u, v)
			pix = append(pix, unit8(c.X), unit8(c.Y), unit8(c.Z), 255)
		}
	}
	return w, h, pix
}

func unit8(v float64) uint8 {
	return uint8(min(1, max(0, v))*255 + 0.5)
}

// readback copies bottom-up RGBA8 rows into fb.
func readback(fb *render.Framebuffer, pix []uint8) {
	for y := range fb.Height {
		src := pix[4*fb.Width*(fb.Height-1-y):]
		row := fb.Pixels[y*fb.Width : (y+1)*fb.Width]
		for x := range row {
			p := src[4*x : 4*x+4]
			row[x] = render.Color{R: p[0], G: p[1], B: p[2], A: 255}
		}
	}
}
