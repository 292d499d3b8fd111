//go:build gl

package gpu

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"runtime"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/scene"
	"github.com/taigrr/penumbra/pkg/shading"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// ErrClosed is returned by calls on a closed Backend.
var ErrClosed = errors.New("gpu backend closed")

type meshBuffers struct {
	vao, vbo, ebo uint32
	count         int32
	used          bool
}

// Backend is a scene pipeline on an offscreen OpenGL context. All GL calls
// run on one goroutine locked to its OS thread; methods hand work to it.
type Backend struct {
	fb    *render.Framebuffer
	calls chan func()
	done  chan struct{}

	// Owned by the GL goroutine.
	window      *glfw.Window
	program     uint32
	fbo         uint32
	colorRB     uint32
	depthRB     uint32
	ssbo        map[int]uint32
	meshes      map[*models.Mesh]*meshBuffers
	textures    map[shading.Texture]uint32
	uniforms    map[string]int32
	width       int
	height      int
	readbackBuf []uint8
}

// New starts a GL context rendering frames the size of fb, read back into
// fb at End.
func New(fb *render.Framebuffer) (*Backend, error) {
	b := &Backend{
		fb:       fb,
		calls:    make(chan func()),
		done:     make(chan struct{}),
		ssbo:     make(map[int]uint32),
		meshes:   make(map[*models.Mesh]*meshBuffers),
		textures: make(map[shading.Texture]uint32),
		uniforms: make(map[string]int32),
	}
	ready := make(chan error, 1)
	go b.loop(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	if err := b.init(); err != nil {
		b.release()
		ready <- err
		return
	}
	ready <- nil
	for fn := range b.calls {
		fn()
	}
	b.release()
}

// do runs fn on the GL goroutine and waits for it.
func (b *Backend) do(fn func() error) error {
	var err error
	finished := make(chan struct{})
	select {
	case b.calls <- func() { err = fn(); close(finished) }:
	case <-b.done:
		return ErrClosed
	}
	<-finished
	return err
}

func (b *Backend) init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	w, err := glfw.CreateWindow(1, 1, "penumbra", nil, nil)
	if err != nil {
		return fmt.Errorf("glfw create window: %w", err)
	}
	b.window = w
	w.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl init: %w", err)
	}
	slog.Info("gl context", "version", gl.GoStr(gl.GetString(gl.VERSION)), "renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	frag, err := DefaultFragmentSource()
	if err != nil {
		return err
	}
	if b.program, err = linkProgram(VertexSource(), frag); err != nil {
		return err
	}
	b.resize(b.fb.Width, b.fb.Height)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	return nil
}

func (b *Backend) resize(width, height int) {
	if b.fbo == 0 {
		gl.GenFramebuffers(1, &b.fbo)
		gl.GenRenderbuffers(1, &b.colorRB)
		gl.GenRenderbuffers(1, &b.depthRB)
	}
	gl.BindRenderbuffer(gl.RENDERBUFFER, b.colorRB)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.RGBA8, int32(width), int32(height))
	gl.BindRenderbuffer(gl.RENDERBUFFER, b.depthRB)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.RENDERBUFFER, b.colorRB)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, b.depthRB)
	b.width, b.height = width, height
	b.readbackBuf = make([]uint8, 4*width*height)
}

func compileShader(src string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csources, free := gl.Strs(src + "\x00")
	defer free()
	gl.ShaderSource(shader, 1, csources, nil)
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("shader compile: %s", strings.TrimRight(string(log), "\x00"))
	}
	return shader, nil
}

func linkProgram(vertex, fragment string) (uint32, error) {
	vs, err := compileShader(vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment: %w", err)
	}
	defer gl.DeleteShader(fs)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)
	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(prog, logLen, nil, &log[0])
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("program link: %s", strings.TrimRight(string(log), "\x00"))
	}
	return prog, nil
}

func (b *Backend) loc(name string) int32 {
	if l, ok := b.uniforms[name]; ok {
		return l
	}
	l := gl.GetUniformLocation(b.program, gl.Str(name+"\x00"))
	b.uniforms[name] = l
	return l
}

func (b *Backend) upload(slot int, size int, ptr func() any) error {
	return b.do(func() error {
		buf, ok := b.ssbo[slot]
		if !ok {
			gl.GenBuffers(1, &buf)
			b.ssbo[slot] = buf
		}
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, buf)
		if size == 0 {
			gl.BufferData(gl.SHADER_STORAGE_BUFFER, 4, nil, gl.DYNAMIC_DRAW)
		} else {
			gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, gl.Ptr(ptr()), gl.DYNAMIC_DRAW)
		}
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, uint32(slot), buf)
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
		return nil
	})
}

// UploadPoints implements occluder.Target.
func (b *Backend) UploadPoints(slot int, data []float32) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("slot %d: %d floats is not a whole number of points", slot, len(data))
	}
	return b.upload(slot, 4*len(data), func() any { return data })
}

// UploadIndices implements occluder.Target.
func (b *Backend) UploadIndices(slot int, data []int32) error {
	if len(data)%3 != 0 {
		return fmt.Errorf("slot %d: %w", slot, occluder.ErrIndexCount)
	}
	return b.upload(slot, 4*len(data), func() any { return data })
}

// Begin implements scene.Pipeline.
func (b *Backend) Begin(bg color.RGBA) {
	b.do(func() error {
		if b.width != b.fb.Width || b.height != b.fb.Height {
			b.resize(b.fb.Width, b.fb.Height)
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
		gl.Viewport(0, 0, int32(b.width), int32(b.height))
		gl.ClearColor(float32(bg.R)/255, float32(bg.G)/255, float32(bg.B)/255, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
		for _, mb := range b.meshes {
			mb.used = false
		}
		return nil
	})
}

func (b *Backend) meshBuffers(m *models.Mesh) *meshBuffers {
	if mb, ok := b.meshes[m]; ok {
		mb.used = true
		return mb
	}
	verts, elems := interleave(m)
	mb := &meshBuffers{count: int32(len(elems)), used: true}
	gl.GenVertexArrays(1, &mb.vao)
	gl.GenBuffers(1, &mb.vbo)
	gl.GenBuffers(1, &mb.ebo)
	gl.BindVertexArray(mb.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, mb.vbo)
	if len(verts) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 4*len(verts), gl.Ptr(verts), gl.STATIC_DRAW)
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, mb.ebo)
	if len(elems) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, 4*len(elems), gl.Ptr(elems), gl.STATIC_DRAW)
	}
	const stride = 4 * vertexStride
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 6*4)
	gl.BindVertexArray(0)
	b.meshes[m] = mb
	return mb
}

func (b *Backend) texture(t shading.Texture) uint32 {
	if id, ok := b.textures[t]; ok {
		return id
	}
	w, h, pix := bake(t)
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	b.textures[t] = id
	return id
}

func boolInt(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func (b *Backend) setUniforms(u *shading.Uniforms, hasUV bool) {
	mv, persp, obj := mat32(u.ModelView), mat32(u.Persp), mat32(u.ObjTransform)
	gl.UniformMatrix4fv(b.loc("modelView"), 1, false, &mv[0])
	gl.UniformMatrix4fv(b.loc("persp"), 1, false, &persp[0])
	gl.UniformMatrix4fv(b.loc("objTransform"), 1, false, &obj[0])
	gl.Uniform1i(b.loc("objTriangles"), int32(u.ObjTriangles))

	gl.Uniform3f(b.loc("light"), float32(u.Light.X), float32(u.Light.Y), float32(u.Light.Z))
	if n := len(u.Lights); n > 0 {
		flat := make([]float32, 0, 3*n)
		for _, l := range u.Lights {
			flat = append(flat, float32(l.X), float32(l.Y), float32(l.Z))
		}
		gl.Uniform3fv(b.loc("lights"), int32(n), &flat[0])
	}
	gl.Uniform1i(b.loc("numLights"), int32(len(u.Lights)))

	gl.Uniform1f(b.loc("dim"), float32(u.Dim))
	gl.Uniform1f(b.loc("opacity"), float32(u.Opacity))
	c := u.DefaultColor
	gl.Uniform3f(b.loc("defaultColor"), float32(c.X), float32(c.Y), float32(c.Z))
	gl.Uniform1i(b.loc("useDefaultColor"), boolInt(u.UseDefaultColor))
	gl.Uniform1i(b.loc("useLight"), boolInt(u.UseLight))
	gl.Uniform1i(b.loc("shadowing"), boolInt(u.Shadowing))
	gl.Uniform1i(b.loc("useTexture"), boolInt(u.UseTexture))
	gl.Uniform1i(b.loc("useTint"), boolInt(u.UseTint))
	gl.Uniform1i(b.loc("fwdFacing"), boolInt(u.FwdFacing))
	gl.Uniform1i(b.loc("faceted"), boolInt(u.Faceted))
	gl.Uniform1i(b.loc("hasUV"), boolInt(hasUV))

	s := u.Shadow
	eps := s.Epsilon
	if eps == 0 {
		eps = shadow.DefaultEpsilon
	}
	gl.Uniform1i(b.loc("samples"), int32(s.Samples))
	gl.Uniform1f(b.loc("radius"), float32(s.Radius))
	gl.Uniform1f(b.loc("shadowFloor"), float32(s.Floor))
	gl.Uniform1f(b.loc("epsilon"), float32(eps))
	gl.Uniform1i(b.loc("includeCenter"), boolInt(s.IncludeCenter))
	gl.Uniform1i(b.loc("symmetric"), boolInt(s.Symmetric))
	gl.Uniform1i(b.loc("strategy"), int32(s.Strategy))
	gl.Uniform1ui(b.loc("frame"), s.Frame)
}

// Draw implements scene.Pipeline.
func (b *Backend) Draw(ctx context.Context, d *scene.Draw) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.Uniforms.Validate(); err != nil {
		return fmt.Errorf("uniforms: %w", err)
	}
	return b.do(func() error {
		mb := b.meshBuffers(d.Mesh)
		gl.UseProgram(b.program)
		b.setUniforms(&d.Uniforms, d.Mesh.HasUVs())
		if d.Uniforms.UseTexture && d.Texture != nil {
			gl.ActiveTexture(gl.TEXTURE0)
			gl.BindTexture(gl.TEXTURE_2D, b.texture(d.Texture))
			gl.Uniform1i(b.loc("tex"), 0)
		}
		if d.Uniforms.Opacity < 1 {
			gl.Enable(gl.BLEND)
		} else {
			gl.Disable(gl.BLEND)
		}
		gl.BindVertexArray(mb.vao)
		gl.DrawElementsWithOffset(gl.TRIANGLES, mb.count, gl.UNSIGNED_INT, 0)
		gl.BindVertexArray(0)
		if code := gl.GetError(); code != gl.NO_ERROR {
			return fmt.Errorf("draw %s: gl error 0x%x", d.Name, code)
		}
		return nil
	})
}

// End implements scene.Pipeline. It reads the frame into the framebuffer
// and frees meshes the frame did not draw.
func (b *Backend) End() error {
	return b.do(func() error {
		gl.Finish()
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.fbo)
		gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
		gl.ReadPixels(0, 0, int32(b.width), int32(b.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(b.readbackBuf))
		readback(b.fb, b.readbackBuf)
		for m, mb := range b.meshes {
			if !mb.used {
				b.freeMesh(mb)
				delete(b.meshes, m)
			}
		}
		return nil
	})
}

func (b *Backend) freeMesh(mb *meshBuffers) {
	gl.DeleteVertexArrays(1, &mb.vao)
	gl.DeleteBuffers(1, &mb.vbo)
	gl.DeleteBuffers(1, &mb.ebo)
}

// release frees GL objects and the window. It runs on the GL goroutine.
func (b *Backend) release() {
	if b.window == nil {
		glfw.Terminate()
		return
	}
	for _, mb := range b.meshes {
		b.freeMesh(mb)
	}
	for _, id := range b.textures {
		gl.DeleteTextures(1, &id)
	}
	for _, id := range b.ssbo {
		gl.DeleteBuffers(1, &id)
	}
	if b.fbo != 0 {
		gl.DeleteFramebuffers(1, &b.fbo)
		gl.DeleteRenderbuffers(1, &b.colorRB)
		gl.DeleteRenderbuffers(1, &b.depthRB)
	}
	if b.program != 0 {
		gl.DeleteProgram(b.program)
	}
	b.window.Destroy()
	glfw.Terminate()
}

// Close stops the GL goroutine and frees its resources.
func (b *Backend) Close() error {
	select {
	case <-b.done:
		return nil
	default:
	}
	close(b.calls)
	<-b.done
	return nil
}
