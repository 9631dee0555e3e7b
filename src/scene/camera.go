package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Up is the world up vector. The y axis points down in clip space.
var Up = mgl32.Vec3{0, -1, 0}

// Camera produces projection and view matrices for a Vulkan clip space with
// depth in [0, 1].
type Camera struct {
	projection  mgl32.Mat4
	view        mgl32.Mat4
	inverseView mgl32.Mat4
}

func NewCamera() *Camera {
	return &Camera{projection: mgl32.Ident4(), view: mgl32.Ident4(), inverseView: mgl32.Ident4()}
}

func (c *Camera) SetOrthographicProjection(left, right, top, bottom, near, far float32) {
	c.projection = mgl32.Ident4()
	c.projection[0] = 2 / (right - left)
	c.projection[5] = 2 / (bottom - top)
	c.projection[10] = 1 / (far - near)
	c.projection[12] = -(right + left) / (right - left)
	c.projection[13] = -(bottom + top) / (bottom - top)
	c.projection[14] = -near / (far - near)
}

// SetPerspectiveProjection takes the vertical field of view in radians.
// aspect must be non-zero.
func (c *Camera) SetPerspectiveProjection(fovy, aspect, near, far float32) {
	tanHalf := float32(math.Tan(float64(fovy / 2)))
	c.projection = mgl32.Mat4{}
	c.projection[0] = 1 / (aspect * tanHalf)
	c.projection[5] = 1 / tanHalf
	c.projection[10] = far / (far - near)
	c.projection[11] = 1
	c.projection[14] = -(far * near) / (far - near)
}

func (c *Camera) SetViewDirection(position, direction, up mgl32.Vec3) {
	w := direction.Normalize()
	u := w.Cross(up).Normalize()
	v := w.Cross(u)
	c.setBasis(position, u, v, w)
}

func (c *Camera) SetViewTarget(position, target, up mgl32.Vec3) {
	c.SetViewDirection(position, target.Sub(position), up)
}

// SetViewYXZ orients the camera from Tait-Bryan angles, matching Transform.
func (c *Camera) SetViewYXZ(position, rotation mgl32.Vec3) {
	c1, s1 := cos(rotation.Y()), sin(rotation.Y())
	c2, s2 := cos(rotation.X()), sin(rotation.X())
	c3, s3 := cos(rotation.Z()), sin(rotation.Z())
	u := mgl32.Vec3{c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1}
	v := mgl32.Vec3{c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3}
	w := mgl32.Vec3{c2 * s1, -s2, c1 * c2}
	c.setBasis(position, u, v, w)
}

func (c *Camera) setBasis(position, u, v, w mgl32.Vec3) {
	c.view = mgl32.Mat4{
		u.X(), v.X(), w.X(), 0,
		u.Y(), v.Y(), w.Y(), 0,
		u.Z(), v.Z(), w.Z(), 0,
		-u.Dot(position), -v.Dot(position), -w.Dot(position), 1,
	}
	c.inverseView = mgl32.Mat4{
		u.X(), u.Y(), u.Z(), 0,
		v.X(), v.Y(), v.Z(), 0,
		w.X(), w.Y(), w.Z(), 0,
		position.X(), position.Y(), position.Z(), 1,
	}
}

func (c *Camera) Projection() mgl32.Mat4  { return c.projection }
func (c *Camera) View() mgl32.Mat4        { return c.view }
func (c *Camera) InverseView() mgl32.Mat4 { return c.inverseView }

// Position is the camera's world position.
func (c *Camera) Position() mgl32.Vec3 {
	return c.inverseView.Col(3).Vec3()
}

// ViewProjection is projection * view, the matrix frustum culling runs on.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.projection.Mul4(c.view)
}
