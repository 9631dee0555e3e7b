package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// frameSlot is the per-frame-in-flight set of recording and sync objects.
// Slot k is only touched again once inFlight has signaled.
type frameSlot struct {
	commandBuffer  vulkan.CommandBuffer
	imageAvailable vulkan.Semaphore
	renderFinished vulkan.Semaphore
	inFlight       vulkan.Fence
}

// newFrameSlots allocates count slots. Fences start signaled so the first
// wait on each slot returns immediately.
func newFrameSlots(device Device, count int) (slots []frameSlot, err error) {
	buffers, err := device.AllocateCommandBuffers(count)
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffers")
	}
	slots = make([]frameSlot, count)
	for i := range slots {
		slots[i].commandBuffer = buffers[i]
	}
	defer func() {
		if err != nil {
			destroyFrameSlots(device, slots)
			slots = nil
		}
	}()

	for i := range slots {
		if slots[i].imageAvailable, err = device.CreateSemaphore(); err != nil {
			return slots, errors.Wrapf(err, "slot %d: image available semaphore", i)
		}
		if slots[i].renderFinished, err = device.CreateSemaphore(); err != nil {
			return slots, errors.Wrapf(err, "slot %d: render finished semaphore", i)
		}
		if slots[i].inFlight, err = device.CreateFence(true); err != nil {
			return slots, errors.Wrapf(err, "slot %d: in-flight fence", i)
		}
	}
	return slots, nil
}

func destroyFrameSlots(device Device, slots []frameSlot) {
	buffers := make([]vulkan.CommandBuffer, 0, len(slots))
	for _, slot := range slots {
		if slot.inFlight != vulkan.NullFence {
			device.DestroyFence(slot.inFlight)
		}
		if slot.renderFinished != vulkan.NullSemaphore {
			device.DestroySemaphore(slot.renderFinished)
		}
		if slot.imageAvailable != vulkan.NullSemaphore {
			device.DestroySemaphore(slot.imageAvailable)
		}
		buffers = append(buffers, slot.commandBuffer)
	}
	if len(buffers) > 0 {
		device.FreeCommandBuffers(buffers)
	}
}

// renew replaces the sync objects of a frame that acquired an image but never
// submitted: the acquire semaphore is still signaled, and when fenceReset is
// set the fence is unsignaled with nothing left to signal it.
func (s *frameSlot) renew(device Device, fenceReset bool) error {
	if err := device.WaitIdle(); err != nil {
		return err
	}
	sem, err := device.CreateSemaphore()
	if err != nil {
		return errors.Wrap(err, "image available semaphore")
	}
	device.DestroySemaphore(s.imageAvailable)
	s.imageAvailable = sem
	if !fenceReset {
		return nil
	}
	fence, err := device.CreateFence(true)
	if err != nil {
		return errors.Wrap(err, "in-flight fence")
	}
	device.DestroyFence(s.inFlight)
	s.inFlight = fence
	return nil
}

func slotFences(slots []frameSlot) []vulkan.Fence {
	fences := make([]vulkan.Fence, len(slots))
	for i, slot := range slots {
		fences[i] = slot.inFlight
	}
	return fences
}

// Frame is lent to the caller between BeginFrame and EndFrame. Retaining it
// past EndFrame is an error; the renderer rejects stale frames.
type Frame struct {
	// Index is the frame slot, cycling through [0, FramesInFlight).
	Index int
	// ImageIndex is the swapchain image being rendered, in acquire order.
	ImageIndex uint32
	// CommandBuffer is the slot's primary command buffer, in recording state.
	CommandBuffer vulkan.CommandBuffer
	// Recorder records into CommandBuffer.
	Recorder CommandRecorder

	serial uint64
}
