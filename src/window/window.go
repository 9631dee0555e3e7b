// Package window is the GLFW surface provider. Every method must run on the
// main OS thread.
package window

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
	"prism/src/scene"
)

// Window is a GLFW window without a client API, presented to by Vulkan.
type Window struct {
	cfg      windowConfig
	window   *glfw.Window
	onResize func(width, height int)
}

var (
	_ render.SurfaceProvider = (*Window)(nil)
	_ scene.KeyState         = (*Window)(nil)
)

// New initializes GLFW and opens the window.
func New(opts ...WindowBuilderOption) (*Window, error) {
	cfg := defaultWindowConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.width <= 0 || cfg.height <= 0 {
		return nil, errors.Errorf("invalid window size %dx%d", cfg.width, cfg.height)
	}

	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize GLFW")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("GLFW reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(cfg.resizable))

	win, err := glfw.CreateWindow(cfg.width, cfg.height, cfg.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create GLFW window")
	}

	w := &Window{cfg: cfg, window: win}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})
	return w, nil
}

// OnResize registers the framebuffer resize handler, replacing any earlier one.
func (w *Window) OnResize(fn func(width, height int)) {
	w.onResize = fn
}

func (w *Window) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

func (w *Window) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.NullSurface, errors.WithMessage(render.ErrSurfaceCreationFailed, err.Error())
	}
	return vulkan.SurfaceFromPointer(ptr), nil
}

func (w *Window) RequiredInstanceExtensions() []string {
	exts := w.window.GetRequiredInstanceExtensions()
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = e + "\x00"
	}
	return out
}

func (w *Window) KeyPressed(key scene.Key) bool {
	k, ok := glfwKeys[key]
	if !ok {
		return false
	}
	return w.window.GetKey(k) == glfw.Press
}

func (w *Window) ShouldClose() bool {
	return w.window.ShouldClose()
}

func (w *Window) SetShouldClose(v bool) {
	w.window.SetShouldClose(v)
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until an event arrives, used while minimized.
func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) Title() string {
	return w.cfg.title
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
}

var glfwKeys = map[scene.Key]glfw.Key{
	scene.KeyA:     glfw.KeyA,
	scene.KeyD:     glfw.KeyD,
	scene.KeyW:     glfw.KeyW,
	scene.KeyS:     glfw.KeyS,
	scene.KeyE:     glfw.KeyE,
	scene.KeyQ:     glfw.KeyQ,
	scene.KeyLeft:  glfw.KeyLeft,
	scene.KeyRight: glfw.KeyRight,
	scene.KeyUp:    glfw.KeyUp,
	scene.KeyDown:  glfw.KeyDown,
}

func glfwBool(v bool) int {
	if v {
		return glfw.True
	}
	return glfw.False
}
