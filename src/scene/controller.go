package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Key int

const (
	KeyUnknown Key = iota
	KeyA
	KeyD
	KeyW
	KeyS
	KeyE
	KeyQ
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
)

// KeyState reports whether a key is held down.
type KeyState interface {
	KeyPressed(key Key) bool
}

type KeyMappings struct {
	MoveLeft     Key
	MoveRight    Key
	MoveForward  Key
	MoveBackward Key
	MoveUp       Key
	MoveDown     Key
	LookLeft     Key
	LookRight    Key
	LookUp       Key
	LookDown     Key
}

func DefaultKeyMappings() KeyMappings {
	return KeyMappings{
		MoveLeft:     KeyA,
		MoveRight:    KeyD,
		MoveForward:  KeyW,
		MoveBackward: KeyS,
		MoveUp:       KeyE,
		MoveDown:     KeyQ,
		LookLeft:     KeyLeft,
		LookRight:    KeyRight,
		LookUp:       KeyUp,
		LookDown:     KeyDown,
	}
}

const (
	maxPitch = 1.5
	twoPi    = 2 * math.Pi
)

// KeyboardController moves an object in the XZ plane and turns it with the
// arrow keys.
type KeyboardController struct {
	Keys      KeyMappings
	MoveSpeed float32
	LookSpeed float32
}

func NewKeyboardController() *KeyboardController {
	return &KeyboardController{Keys: DefaultKeyMappings(), MoveSpeed: 3, LookSpeed: 1.5}
}

func (c *KeyboardController) MoveInPlaneXZ(keys KeyState, dt float32, obj *Object) {
	var rotate mgl32.Vec3
	if keys.KeyPressed(c.Keys.LookRight) {
		rotate[1]++
	}
	if keys.KeyPressed(c.Keys.LookLeft) {
		rotate[1]--
	}
	if keys.KeyPressed(c.Keys.LookUp) {
		rotate[0]++
	}
	if keys.KeyPressed(c.Keys.LookDown) {
		rotate[0]--
	}
	if rotate.Dot(rotate) > mgl32.Epsilon {
		obj.Transform.Rotation = obj.Transform.Rotation.Add(rotate.Normalize().Mul(c.LookSpeed * dt))
	}

	rot := &obj.Transform.Rotation
	rot[0] = mgl32.Clamp(rot[0], -maxPitch, maxPitch)
	rot[1] = wrapAngle(rot[1])

	yaw := rot[1]
	forward := mgl32.Vec3{sin(yaw), 0, cos(yaw)}
	right := mgl32.Vec3{forward.Z(), 0, -forward.X()}

	var move mgl32.Vec3
	if keys.KeyPressed(c.Keys.MoveForward) {
		move = move.Add(forward)
	}
	if keys.KeyPressed(c.Keys.MoveBackward) {
		move = move.Sub(forward)
	}
	if keys.KeyPressed(c.Keys.MoveRight) {
		move = move.Add(right)
	}
	if keys.KeyPressed(c.Keys.MoveLeft) {
		move = move.Sub(right)
	}
	if keys.KeyPressed(c.Keys.MoveUp) {
		move = move.Add(Up)
	}
	if keys.KeyPressed(c.Keys.MoveDown) {
		move = move.Sub(Up)
	}
	if move.Dot(move) > mgl32.Epsilon {
		obj.Transform.Translation = obj.Transform.Translation.Add(move.Normalize().Mul(c.MoveSpeed * dt))
	}
}

// wrapAngle maps a into [0, 2π).
func wrapAngle(a float32) float32 {
	w := float32(math.Mod(float64(a), twoPi))
	if w < 0 {
		w += twoPi
	}
	return w
}
