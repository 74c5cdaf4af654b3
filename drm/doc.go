// Package drm provides a library to interact with DRM
// (Direct Rendering Manager) and KMS (Kernel Mode Setting) interfaces.
// DRM is a low level interface for the graphics card (gpu) and this package
// enables the creation of graphics library on top of the kernel drm/kms
// subsystem.
package drm
