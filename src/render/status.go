package render

import (
	"github.com/vulkan-go/vulkan"
)

// Status is the non-fatal outcome of an acquire or present.
type Status int

const (
	// StatusOK means the image matches the surface.
	StatusOK Status = iota
	// StatusSuboptimal means the image is usable this frame but the chain
	// should be rebuilt soon.
	StatusSuboptimal
	// StatusOutOfDate means the surface no longer matches the chain. The chain
	// must be rebuilt before anything else is presented.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	}
	return "unknown"
}

// NeedsRebuild reports whether the chain should be rebuilt.
func (s Status) NeedsRebuild() bool {
	return s != StatusOK
}

// classify splits a swapchain result into an expected Status or an error.
func classify(res vulkan.Result) (Status, error) {
	switch res {
	case vulkan.Success:
		return StatusOK, nil
	case vulkan.Suboptimal:
		return StatusSuboptimal, nil
	case vulkan.ErrorOutOfDate:
		return StatusOutOfDate, nil
	}
	return StatusOK, NewError(res)
}
