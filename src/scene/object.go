// Package scene holds what gets drawn: objects with transforms and models,
// the camera and the keyboard controller that moves it, and the point light.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

type ID uint32

// Object is anything placed in the world. Model is nil for objects that only
// carry a transform, such as the viewer.
type Object struct {
	id        ID
	Model     Model
	Color     mgl32.Vec3
	Transform Transform
}

func (o *Object) ID() ID {
	return o.id
}

// Map indexes objects by id. Iteration order is unspecified.
type Map map[ID]*Object

// Registry hands out object ids. Ids are unique per registry and never reused.
type Registry struct {
	next ID
}

func (r *Registry) NewObject() *Object {
	o := &Object{id: r.next, Transform: NewTransform()}
	r.next++
	return o
}

// Add creates an object and inserts it into m.
func (r *Registry) Add(m Map) *Object {
	o := r.NewObject()
	m[o.id] = o
	return o
}
