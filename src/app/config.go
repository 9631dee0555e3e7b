package app

import (
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

var presentModes = map[string]vulkan.PresentMode{
	"fifo":         vulkan.PresentModeFifo,
	"fifo-relaxed": vulkan.PresentModeFifoRelaxed,
	"mailbox":      vulkan.PresentModeMailbox,
	"immediate":    vulkan.PresentModeImmediate,
}

type Config struct {
	Title  string
	Width  int
	Height int

	// ShaderDir holds the compiled SPIR-V for every render system.
	ShaderDir string

	FramesInFlight int
	VSync          bool
	Debug          bool
	ClearColor     [3]float32
	// PresentMode names the preferred present mode, empty for the renderer
	// default. VSync overrides it.
	PresentMode string
	// AcquireTimeout bounds each image acquisition; zero waits forever.
	AcquireTimeout time.Duration
	// MaxRebuildRetries is how many consecutive failed swapchain rebuilds
	// Run tolerates before giving up.
	MaxRebuildRetries int

	// MaxFrameTime caps the simulated step after a stall.
	MaxFrameTime time.Duration
	// FieldOfView is vertical, in degrees.
	FieldOfView float32
	Near        float32
	Far         float32

	StatsInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Title:             "prism",
		Width:             800,
		Height:            800,
		ShaderDir:         "shaders",
		FramesInFlight:    render.DefaultFramesInFlight,
		ClearColor:        [3]float32{0.01, 0.01, 0.01},
		MaxRebuildRetries: 10,
		MaxFrameTime:      time.Second,
		FieldOfView:       50,
		Near:              0.1,
		Far:               30,
		StatsInterval:     5 * time.Second,
	}
}

// PresentModeNames lists the names PresentMode accepts.
func PresentModeNames() []string {
	names := make([]string, 0, len(presentModes))
	for name := range presentModes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c Config) rendererOptions() ([]render.RendererBuilderOption, error) {
	opts := []render.RendererBuilderOption{
		render.WithFramesInFlight(c.FramesInFlight),
		render.WithVSync(c.VSync),
		render.WithClearColor(c.ClearColor[0], c.ClearColor[1], c.ClearColor[2]),
	}
	if c.PresentMode != "" {
		mode, ok := presentModes[c.PresentMode]
		if !ok {
			return nil, errors.Errorf("unknown present mode %q, want one of %v", c.PresentMode, PresentModeNames())
		}
		opts = append(opts, render.WithPresentMode(mode))
	}
	if c.AcquireTimeout > 0 {
		opts = append(opts, render.WithAcquireTimeout(uint64(c.AcquireTimeout.Nanoseconds())))
	}
	return opts, nil
}
