package vkdevice

import (
	"github.com/vulkan-go/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation\x00"

type deviceConfig struct {
	appName          string
	validation       bool
	deviceExtensions []string
}

func defaultDeviceConfig() deviceConfig {
	return deviceConfig{
		appName:          "prism",
		deviceExtensions: []string{vulkan.KhrSwapchainExtensionName + "\x00"},
	}
}

// DeviceBuilderOption is a functional option for configuring a Device.
// Use the With* functions to create options.
type DeviceBuilderOption func(c *deviceConfig)

// WithAppName sets the application name reported to the driver.
//
// Parameters:
//   - name: application name
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithAppName(name string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.appName = name
	}
}

// WithValidation enables the Khronos validation layer when it is installed.
//
// Parameters:
//   - enabled: true to request the layer
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithValidation(enabled bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.validation = enabled
	}
}

// WithDeviceExtensions requests device extensions on top of the swapchain
// extension. Physical devices missing any of them are skipped.
//
// Parameters:
//   - names: extension names
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithDeviceExtensions(names ...string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.deviceExtensions = append(c.deviceExtensions, terminated(names)...)
	}
}
