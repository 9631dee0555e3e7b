// Package app wires the window, device, renderer, render systems and scene
// together and runs the frame loop.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/profiler"
	"prism/src/render"
	"prism/src/render/systems"
	"prism/src/render/vkdevice"
	"prism/src/scene"
)

var ambientLight = mgl32.Vec4{1, 1, 1, 0.02}

// Input is the event side of the window.
type Input interface {
	scene.KeyState
	ShouldClose() bool
	PollEvents()
	WaitEvents()
}

// Window is a drawable that also delivers input and resize events.
type Window interface {
	render.SurfaceProvider
	Input
	OnResize(fn func(width, height int))
}

type App struct {
	cfg      Config
	log      *slog.Logger
	input    Input
	renderer render.Context
	systems  systems.Chain

	// ubos and globalSets are indexed by frame slot.
	ubos       []UniformBuffer
	globalSets []vulkan.DescriptorSet

	registry   scene.Registry
	objects    scene.Map
	meshes     []*scene.Mesh
	camera     *scene.Camera
	viewer     *scene.Object
	controller *scene.KeyboardController
	light      scene.PointLight
	profiler   *profiler.Profiler

	now     func() time.Time
	runTime float32
	closers []func()
}

// New builds the renderer on dev, one global uniform buffer and descriptor
// set per frame slot, the render systems and the scene.
func New(cfg Config, win Window, dev *vkdevice.Device) (a *App, err error) {
	opts, err := cfg.rendererOptions()
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewRenderer(dev, win, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create renderer")
	}
	a = newApp(cfg, win, renderer)
	defer func() {
		if err != nil {
			a.Destroy()
			a = nil
		}
	}()
	log := a.log
	win.OnResize(func(width, height int) {
		log.Debug("framebuffer resized", "width", width, "height", height)
		renderer.NotifyResized()
	})

	n := uint32(renderer.FramesInFlight())
	pool, err := dev.NewDescriptorPoolBuilder().
		SetMaxSets(n).
		AddPoolSize(vulkan.DescriptorTypeUniformBuffer, n).
		Build()
	if err != nil {
		return a, errors.Wrap(err, "global descriptor pool")
	}
	a.closers = append(a.closers, pool.Destroy)

	layout, err := dev.NewDescriptorSetLayoutBuilder().
		AddBinding(0, vulkan.DescriptorTypeUniformBuffer, vulkan.ShaderStageFlags(vulkan.ShaderStageAllGraphics), 1).
		Build()
	if err != nil {
		return a, errors.Wrap(err, "global set layout")
	}
	a.closers = append(a.closers, layout.Destroy)

	for i := uint32(0); i < n; i++ {
		buf, err := dev.NewBuffer(
			vulkan.DeviceSize(globalUBOSize),
			vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit),
			vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit),
		)
		if err != nil {
			return a, errors.Wrapf(err, "global ubo %d", i)
		}
		a.closers = append(a.closers, buf.Destroy)
		if err := buf.Map(); err != nil {
			return a, errors.Wrapf(err, "global ubo %d", i)
		}
		set, err := vkdevice.NewDescriptorWriter(layout, pool).WriteBuffer(0, buf.DescriptorInfo()).Build()
		if err != nil {
			return a, errors.Wrapf(err, "global descriptor set %d", i)
		}
		a.ubos = append(a.ubos, buf)
		a.globalSets = append(a.globalSets, set)
	}

	mesh, err := systems.LoadMeshSystem(dev, renderer.RenderPass(), layout.Handle(), cfg.ShaderDir)
	if err != nil {
		return a, err
	}
	a.systems = append(a.systems, mesh)
	light, err := systems.LoadPointLightSystem(dev, renderer.RenderPass(), layout.Handle(), cfg.ShaderDir)
	if err != nil {
		return a, err
	}
	a.systems = append(a.systems, light)

	if err := a.loadScene(dev); err != nil {
		return a, err
	}
	a.log.Info("app ready", "device", dev.Name(), "framesInFlight", n, "objects", len(a.objects))
	return a, nil
}

// newApp sets up everything that does not touch the device.
func newApp(cfg Config, input Input, renderer render.Context) *App {
	log := render.Logger().With("component", "app")
	a := &App{
		cfg:        cfg,
		log:        log,
		input:      input,
		renderer:   renderer,
		objects:    make(scene.Map),
		camera:     scene.NewCamera(),
		controller: scene.NewKeyboardController(),
		light:      scene.NewPointLight(),
		profiler:   profiler.NewProfiler(log, cfg.StatsInterval),
		now:        time.Now,
	}
	a.viewer = a.registry.NewObject()
	a.viewer.Transform.Translation = mgl32.Vec3{0, -2, -10}
	return a
}

// loadScene places two cubes on a floor quad. The cube mesh is shared.
func (a *App) loadScene(alloc render.BufferAllocator) error {
	cube, err := scene.NewMesh(alloc, scene.NewCubeBuilder(mgl32.Vec3{0, -0.5, 0}))
	if err != nil {
		return errors.Wrap(err, "cube mesh")
	}
	a.meshes = append(a.meshes, cube)
	floor, err := scene.NewMesh(alloc, scene.NewQuadBuilder())
	if err != nil {
		return errors.Wrap(err, "floor mesh")
	}
	a.meshes = append(a.meshes, floor)

	for _, pos := range []mgl32.Vec3{{-1.5, 0, 0}, {1.5, 0, 0}} {
		obj := a.registry.Add(a.objects)
		obj.Model = cube
		obj.Transform.Translation = pos
	}
	obj := a.registry.Add(a.objects)
	obj.Model = floor
	obj.Transform.Scale = mgl32.Vec3{3, 1, 3}
	return nil
}

// Run drives frames until the window asks to close, ctx is done or a fatal
// error occurs. A minimized window blocks in WaitEvents instead of spinning.
// A failed swapchain rebuild skips the tick and is retried up to
// Config.MaxRebuildRetries times in a row.
func (a *App) Run(ctx context.Context) error {
	last := a.now()
	retries := 0
	for !a.input.ShouldClose() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		a.input.PollEvents()

		now := a.now()
		elapsed := now.Sub(last)
		last = now

		err := a.tick(elapsed)
		switch {
		case err == nil:
			retries = 0
		case errors.Is(err, render.ErrSurfaceUnavailable):
			a.log.Debug("surface unavailable, waiting for events")
			a.input.WaitEvents()
		case rebuildFailed(err):
			retries++
			if retries > a.cfg.MaxRebuildRetries {
				return errors.Wrapf(err, "swapchain rebuild failed %d times", retries)
			}
			a.log.Warn("swapchain rebuild failed, retrying", "attempt", retries, "err", err)
		case render.IsTransient(err):
			a.log.Warn("frame skipped", "err", err)
		default:
			return err
		}
	}
	return nil
}

// rebuildFailed reports a mid-run chain rebuild that may succeed next tick.
// A render pass that no longer fits the surface never will.
func rebuildFailed(err error) bool {
	return errors.Is(err, render.ErrChainConstructionFailed) && !errors.Is(err, render.ErrRenderPassIncompatible)
}

func (a *App) tick(elapsed time.Duration) error {
	a.runTime += float32(elapsed.Seconds())
	if a.cfg.MaxFrameTime > 0 && elapsed > a.cfg.MaxFrameTime {
		elapsed = a.cfg.MaxFrameTime
	}
	dt := float32(elapsed.Seconds())

	a.controller.MoveInPlaneXZ(a.input, dt, a.viewer)
	a.camera.SetViewYXZ(a.viewer.Transform.Translation, a.viewer.Transform.Rotation)
	if aspect := a.renderer.AspectRatio(); aspect > 0 {
		a.camera.SetPerspectiveProjection(mgl32.DegToRad(a.cfg.FieldOfView), aspect, a.cfg.Near, a.cfg.Far)
	}
	a.light.Orbit(a.runTime)

	frame, err := a.renderer.BeginFrame()
	if err != nil {
		return err
	}
	if frame == nil {
		a.profiler.Skip()
		return nil
	}

	ubo := GlobalUBO{
		Projection:        a.camera.Projection(),
		View:              a.camera.View(),
		AmbientLightColor: ambientLight,
		LightPosition:     a.light.Position,
		LightColor:        a.light.Color,
	}
	a.ubos[frame.Index].Write(ubo.bytes())
	if err := a.ubos[frame.Index].Flush(); err != nil {
		a.log.Warn("flush global ubo", "frame", frame.Index, "err", err)
	}

	info := &systems.FrameInfo{
		FrameIndex:          frame.Index,
		FrameTime:           dt,
		CommandBuffer:       frame.CommandBuffer,
		Recorder:            frame.Recorder,
		Camera:              a.camera,
		GlobalDescriptorSet: a.globalSets[frame.Index],
		Objects:             a.objects,
	}
	a.renderer.BeginPass(frame)
	a.systems.RenderAll(info)
	a.renderer.EndPass(frame)
	if err := a.renderer.EndFrame(frame); err != nil {
		return err
	}
	a.profiler.Tick()
	return nil
}

// Objects is the live scene. Callers may add to it between frames.
func (a *App) Objects() scene.Map {
	return a.objects
}

// Stats is the last profiler report.
func (a *App) Stats() profiler.Stats {
	return a.profiler.Last()
}

// Destroy waits for the GPU through the renderer, then releases systems,
// meshes and global resources in reverse order of creation.
func (a *App) Destroy() error {
	var err error
	if a.renderer != nil {
		err = a.renderer.Destroy()
		a.renderer = nil
	}
	a.systems.Destroy()
	a.systems = nil
	for _, m := range a.meshes {
		m.Destroy()
	}
	a.meshes = nil
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	return err
}
