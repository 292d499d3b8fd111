// Package scene holds the shadow demo's configuration and mutable
// application state, and turns that state into per-draw uniforms.
package scene

import (
	"errors"
	"fmt"
	"os"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/shading"
	"github.com/taigrr/penumbra/pkg/shadow"
	"gopkg.in/yaml.v3"
)

// Config is the YAML scene file.
type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Light   LightConfig   `yaml:"light"`
	Shadow  shadow.Params `yaml:"shadow"`
	Object  ObjectConfig  `yaml:"object"`
	Floor   SurfaceConfig `yaml:"floor"`
	Wall    SurfaceConfig `yaml:"wall"`
	Shading ShadingConfig `yaml:"shading"`
	Wavy    WavyConfig    `yaml:"wavy"`
}

type CameraConfig struct {
	FOV      float64     `yaml:"fov"` // degrees
	Near     float64     `yaml:"near"`
	Far      float64     `yaml:"far"`
	Distance float64     `yaml:"distance"`
	Yaw      float64     `yaml:"yaw"`   // radians
	Pitch    float64     `yaml:"pitch"` // radians
	Target   math3d.Vec3 `yaml:"target"`
}

type LightConfig struct {
	Position math3d.Vec3 `yaml:"position"`
	Dim      float64     `yaml:"dim"`
	// Extra lights switch intensity to the clamped multi-light sum.
	Extra []math3d.Vec3 `yaml:"extra,omitempty"`
}

type ObjectConfig struct {
	// Mesh is a builtin name or a .obj/.glb path.
	Mesh     string      `yaml:"mesh"`
	Anchor   math3d.Vec3 `yaml:"anchor"`
	Scale    float64     `yaml:"scale"`
	Textures []string    `yaml:"textures,omitempty"`
	Color    math3d.Vec3 `yaml:"color"`
	Opacity  float64     `yaml:"opacity"`
	// Rotation is the spin speed in half-degree steps per frame.
	Rotation int `yaml:"rotation"`
}

type SurfaceConfig struct {
	Enabled bool        `yaml:"enabled"`
	Texture string      `yaml:"texture,omitempty"`
	Color   math3d.Vec3 `yaml:"color"`
}

type ShadingConfig struct {
	Faceted    bool     `yaml:"faceted"`
	FwdFacing  bool     `yaml:"forward_facing"`
	Tint       bool     `yaml:"tint"`
	Background [3]uint8 `yaml:"background,flow"`
	// Temporal advances the sampler frame every rendered frame.
	Temporal bool `yaml:"temporal"`
}

type WavyConfig struct {
	Show bool    `yaml:"show"`
	Res  int     `yaml:"res"`
	Freq float64 `yaml:"freq"`
	Ampl float64 `yaml:"ampl"`
}

// Default scene values.
var (
	DefaultLight  = math3d.V3(-1.2, 2.4, 1.8)
	DefaultAnchor = math3d.V3(0, 1.01, 0)
	DefaultTarget = math3d.V3(0, 0.8, 0)
)

const (
	DefaultLightRadius = 0.2
	DefaultDistance    = 10
	DefaultPitch       = 0.2
)

// Default returns the built-in scene: a cube over a floor in front of a
// wall, lit by one soft-shadowing point light.
func Default() Config {
	sh := shadow.Soft()
	sh.Samples = 1
	sh.Radius = DefaultLightRadius
	return Config{
		Camera: CameraConfig{
			FOV:      render.DefaultFOVDegrees,
			Near:     render.DefaultNear,
			Far:      render.DefaultFar,
			Distance: DefaultDistance,
			Pitch:    DefaultPitch,
			Target:   DefaultTarget,
		},
		Light:  LightConfig{Position: DefaultLight, Dim: 1},
		Shadow: sh,
		Object: ObjectConfig{
			Mesh:    "cube",
			Anchor:  DefaultAnchor,
			Scale:   1,
			Color:   math3d.Splat(1),
			Opacity: 1,
		},
		Floor:   SurfaceConfig{Enabled: true, Color: math3d.Splat(1)},
		Wall:    SurfaceConfig{Enabled: true, Color: math3d.Splat(1)},
		Shading: ShadingConfig{Background: [3]uint8{128, 128, 128}},
		Wavy: WavyConfig{
			Res:  15,
			Freq: 2,
			Ampl: 0.3,
		},
	}
}

// Validate reports every out-of-range value.
func (c *Config) Validate() error {
	var errs []error
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera clip planes %v..%v", c.Camera.Near, c.Camera.Far))
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera fov %v outside (0,180)", c.Camera.FOV))
	}
	if c.Camera.Distance <= 0 {
		errs = append(errs, fmt.Errorf("camera distance %v", c.Camera.Distance))
	}
	if n := len(c.Light.Extra); n > shading.MaxLights {
		errs = append(errs, fmt.Errorf("%d extra lights, at most %d", n, shading.MaxLights))
	}
	if c.Light.Dim < 0 {
		errs = append(errs, fmt.Errorf("light dim %v is negative", c.Light.Dim))
	}
	if c.Object.Opacity < 0 || c.Object.Opacity > 1 {
		errs = append(errs, fmt.Errorf("object opacity %v outside [0,1]", c.Object.Opacity))
	}
	if c.Object.Scale <= 0 {
		errs = append(errs, fmt.Errorf("object scale %v", c.Object.Scale))
	}
	if c.Wavy.Res < 2 {
		errs = append(errs, fmt.Errorf("wavy res %d below 2", c.Wavy.Res))
	}
	if err := c.Shadow.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("shadow: %w", err))
	}
	return errors.Join(errs...)
}

// Load reads a scene file over the defaults, so a file only needs the
// values it changes.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scene: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scene %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scene %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}
