package blit

// AcceleratorFormat is the 2-D accelerator's own pixel-format
// enumeration, distinct from the kernel's fourcc codes.
type AcceleratorFormat int

const (
	FormatRGBA8888 AcceleratorFormat = iota
	FormatBGRA8888
	FormatRGB888
	FormatBGR888
	FormatRGB565
	FormatYCbCr420SP
	FormatYCrCb420SP
)

// Fourcc codes as defined by linux/drm_fourcc.h, reproduced here
// rather than imported since no such constants package appears
// anywhere in the retrieval pack.
const (
	fourccARGB8888 = 0x34325241
	fourccXRGB8888 = 0x34325258
	fourccABGR8888 = 0x34324241
	fourccXBGR8888 = 0x34324258
	fourccRGB888   = 0x34324752
	fourccBGR888   = 0x34324742
	fourccRGB565   = 0x36314752
	fourccNV12     = 0x3231564e
	fourccNV21     = 0x3132564e
)

// FormatTable maps a kernel fourcc code to the accelerator format the
// hardware blit path should request, a data-table restructuring of
// rga_helper.cpp's format-conversion switch. Formats absent from the
// table fall back to FormatRGBA8888 via FormatFor, never a missing-key
// panic.
var FormatTable = map[uint32]AcceleratorFormat{
	fourccARGB8888: FormatBGRA8888,
	fourccXRGB8888: FormatBGRA8888,
	fourccABGR8888: FormatRGBA8888,
	fourccXBGR8888: FormatRGBA8888,
	fourccRGB888:   FormatRGB888,
	fourccBGR888:   FormatBGR888,
	fourccRGB565:   FormatRGB565,
	fourccNV12:     FormatYCbCr420SP,
	fourccNV21:     FormatYCrCb420SP,
}

// FormatFor resolves a fourcc to its accelerator format, defaulting to
// 32-bit RGBA for anything FormatTable does not list.
func FormatFor(fourcc uint32) AcceleratorFormat {
	if f, ok := FormatTable[fourcc]; ok {
		return f
	}
	return FormatRGBA8888
}

// FourCCXRGB8888 is the kernel fourcc for the dumb-buffer pixel layout
// every Surface in this daemon uses; exported so sink and mirror can
// stamp it onto the surfaces they hand to the blit engines.
const FourCCXRGB8888 = fourccXRGB8888
