package main

import (
	"github.com/charmbracelet/harmonica"
	"github.com/taigrr/penumbra/pkg/scene"
)

// spinAxis is one orbit angle with momentum. Keys add velocity, which a
// critically damped spring bleeds back to zero.
type spinAxis struct {
	Velocity float64
	accel    float64
	spring   harmonica.Spring
}

func newSpinAxis(fps int) spinAxis {
	return spinAxis{spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0)}
}

// step returns this frame's angle change and decays the velocity.
func (a *spinAxis) step() float64 {
	d := a.Velocity
	a.Velocity, a.accel = a.spring.Update(a.Velocity, a.accel, 0)
	return d
}

// follower eases a displayed value toward its target.
type follower struct {
	Value  float64
	vel    float64
	spring harmonica.Spring
}

func newFollower(fps int, v float64) follower {
	return follower{Value: v, spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 1.0)}
}

func (f *follower) follow(target float64) float64 {
	f.Value, f.vel = f.spring.Update(f.Value, f.vel, target)
	return f.Value
}

// orbit smooths the camera between the state's orbit values and what is
// drawn, so drags and zoom steps glide instead of jump.
type orbit struct {
	fps                  int
	yawSpin, pitchSpin   spinAxis
	yaw, pitch, distance follower
}

func newOrbit(fps int, st *scene.State) *orbit {
	o := &orbit{fps: fps}
	o.reset(st)
	return o
}

// impulse adds spin velocity in radians per frame.
func (o *orbit) impulse(yaw, pitch float64) {
	o.yawSpin.Velocity += yaw
	o.pitchSpin.Velocity += pitch
}

// reset drops momentum and snaps the displayed orbit to the state.
func (o *orbit) reset(st *scene.State) {
	o.yawSpin, o.pitchSpin = newSpinAxis(o.fps), newSpinAxis(o.fps)
	o.yaw = newFollower(o.fps, st.Yaw)
	o.pitch = newFollower(o.fps, st.Pitch)
	o.distance = newFollower(o.fps, st.Distance)
}

// update applies momentum to the state and returns the smoothed orbit.
func (o *orbit) update(st *scene.State) (yaw, pitch, distance float64) {
	st.Yaw += o.yawSpin.step()
	st.Pitch = scene.ClampPitch(st.Pitch + o.pitchSpin.step())
	return o.yaw.follow(st.Yaw), o.pitch.follow(st.Pitch), o.distance.follow(st.Distance)
}
