package imageplan

import "encoding/binary"

// androidMagic is the boot image magic string spec.md section 4.4 names.
const androidMagic = "ANDROID!"

// BootHeader is the subset of an Android boot image header this engine
// needs: the component sizes and page size used to locate a trailing
// signature region (spec.md section 4.4 "Recovery-from-boot patch").
type BootHeader struct {
	KernelSize  uint32
	RamdiskSize uint32
	SecondSize  uint32
	PageSize    uint32
	SigSize     uint32
}

// ParseBootHeader reads the 9 little-endian 32-bit words at offset 8
// (kernel_size, _, ramdisk_size, _, second_size, _, _, page_size,
// sig_size) if data begins with the ANDROID! magic. Returns ok=false if
// the magic is absent or data is too short.
func ParseBootHeader(data []byte) (BootHeader, bool) {
	if len(data) < 8+9*4 || string(data[:8]) != androidMagic {
		return BootHeader{}, false
	}
	words := make([]uint32, 9)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[8+i*4 : 8+i*4+4])
	}
	return BootHeader{
		KernelSize:  words[0],
		RamdiskSize: words[2],
		SecondSize:  words[4],
		PageSize:    words[7],
		SigSize:     words[8],
	}, true
}

// pageAlign rounds size up to the next multiple of pageSize (ceil
// division used by the signature-region offset computation).
func pageAlign(size, pageSize uint32) uint32 {
	if pageSize == 0 {
		return 0
	}
	pages := (size + pageSize - 1) / pageSize
	return pages * pageSize
}

// SignatureRegion computes the [offset, offset+length) byte range the
// recovery-from-boot install script hashes, per spec.md section 4.4:
// page-aligned past kernel+ramdisk+second+one header page when the
// ANDROID! header is present and sig_size > 0; otherwise the fallback
// fixed region.
func SignatureRegion(header BootHeader, present bool, fallbackOffset, fallbackLength int64) (offset, length int64, ok bool) {
	if !present {
		return fallbackOffset, fallbackLength, true
	}
	if header.SigSize == 0 {
		return 0, 0, false
	}
	o := pageAlign(header.KernelSize, header.PageSize) +
		pageAlign(header.RamdiskSize, header.PageSize) +
		pageAlign(header.SecondSize, header.PageSize) +
		header.PageSize
	return int64(o), int64(header.SigSize), true
}
