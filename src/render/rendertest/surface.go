package rendertest

import (
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

// Surface is a resizable drawable. Resize it between frames to simulate the
// window changing size or being minimized.
type Surface struct {
	mu            sync.Mutex
	width, height int
}

var _ render.SurfaceProvider = (*Surface)(nil)

func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height}
}

func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

func (s *Surface) FramebufferSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Surface) CreateSurface(vulkan.Instance) (vulkan.Surface, error) {
	return vulkan.NullSurface, nil
}

func (s *Surface) RequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface\x00"}
}

// MockSurface is a render.SurfaceProvider driven by testify expectations.
type MockSurface struct {
	mock.Mock
}

var _ render.SurfaceProvider = (*MockSurface)(nil)

func (m *MockSurface) FramebufferSize() (int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1)
}

func (m *MockSurface) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	args := m.Called(instance)
	surface, _ := args.Get(0).(vulkan.Surface)
	return surface, args.Error(1)
}

func (m *MockSurface) RequiredInstanceExtensions() []string {
	args := m.Called()
	exts, _ := args.Get(0).([]string)
	return exts
}
