// Command viewer opens a window and renders a small lit scene with the
// Vulkan frame loop. WASD/QE move, arrow keys look, Escape quits.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
	"github.com/xlab/closer"

	"prism/src/app"
	"prism/src/render"
	"prism/src/render/vkdevice"
	"prism/src/window"
)

var _ app.Window = (*window.Window)(nil)

func init() {
	// GLFW and the presentation queue must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg := app.DefaultConfig()
	flag.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	flag.IntVar(&cfg.Width, "width", cfg.Width, "window width in pixels")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "window height in pixels")
	flag.StringVar(&cfg.ShaderDir, "shaders", cfg.ShaderDir, "directory with compiled SPIR-V shaders")
	flag.IntVar(&cfg.FramesInFlight, "frames", cfg.FramesInFlight, "frames in flight")
	flag.BoolVar(&cfg.VSync, "vsync", cfg.VSync, "lock presentation to the display refresh")
	flag.StringVar(&cfg.PresentMode, "present-mode", cfg.PresentMode,
		"preferred present mode, one of "+strings.Join(app.PresentModeNames(), ", "))
	flag.DurationVar(&cfg.AcquireTimeout, "acquire-timeout", cfg.AcquireTimeout, "image acquire timeout, 0 waits forever")
	flag.IntVar(&cfg.MaxRebuildRetries, "rebuild-retries", cfg.MaxRebuildRetries, "consecutive swapchain rebuild failures to tolerate")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable validation layers and debug logging")
	flag.DurationVar(&cfg.StatsInterval, "stats", cfg.StatsInterval, "frame stats interval")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	render.SetLogger(log)

	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	closer.Bind(func() {
		select {
		case <-done:
		default:
			// interrupted mid-run: stop the loop, wake it if it is
			// blocked in WaitEvents, then let run release everything
			cancel()
			glfw.PostEmptyEvent()
			<-done
		}
		log.Info("bye")
	})

	err := run(ctx, cfg)
	close(done)
	if err != nil {
		log.Error("viewer stopped", "err", err)
		closer.Exit(1)
	}
}

// run owns every resource; defers release them in reverse order of creation
// even when a setup step panics through render.OrPanic.
func run(ctx context.Context, cfg app.Config) (err error) {
	defer render.CheckError(&err)

	win, err := window.New(
		window.WithTitle(cfg.Title),
		window.WithWidth(cfg.Width),
		window.WithHeight(cfg.Height),
	)
	render.OrPanic(err)
	defer win.Destroy()

	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	render.OrPanic(vulkan.Init())

	dev, err := vkdevice.New(win,
		vkdevice.WithAppName(cfg.Title),
		vkdevice.WithValidation(cfg.Debug),
	)
	render.OrPanic(err)
	defer dev.Destroy()

	a, err := app.New(cfg, win, dev)
	render.OrPanic(err)
	defer func() {
		if derr := a.Destroy(); derr != nil && err == nil {
			err = derr
		}
	}()

	return a.Run(ctx)
}
