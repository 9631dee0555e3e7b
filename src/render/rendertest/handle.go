package rendertest

import (
	"sync/atomic"
	"unsafe"
)

var handles atomic.Uintptr

// Handle returns a fresh opaque handle value. Vulkan handles point at
// incomplete C types, so the values sit in low, unmapped memory where the
// Go runtime never looks for heap objects.
func Handle() unsafe.Pointer {
	n := handles.Add(1)
	return unsafe.Pointer(uintptr(0x10000 + n*8))
}
