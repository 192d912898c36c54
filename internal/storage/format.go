package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

var (
	// qcow2Magic is bytes 0-3 of every QCOW2 file: "QFI" followed by
	// 0xfb (0x514649fb big-endian).
	qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

	// mbrSignature is the 0x55aa boot signature at offset 510, the
	// end of the first 512-byte sector. Present on MBR disks and on
	// GPT disks via the protective MBR.
	mbrSignature = []byte{0x55, 0xaa}
)

// DetectImageFormat sniffs a disk image's format from its magic bytes.
// Returns VolumeFormatQCOW2 for QCOW2 files and VolumeFormatRaw for
// bootable raw disks; anything else is rejected so arbitrary files
// cannot end up in the images pool.
func DetectImageFormat(filePath string) (VolumeFormat, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return "", fmt.Errorf("file too small to be valid image (< 4 bytes): %w", err)
	}

	if bytes.Equal(magic, qcow2Magic) {
		return VolumeFormatQCOW2, nil
	}

	// Not QCOW2. A bootable raw disk must carry the boot signature at
	// the end of its first sector.
	if _, err := f.Seek(510, 0); err != nil {
		return "", fmt.Errorf("failed to seek to boot sector signature: %w", err)
	}

	sig := make([]byte, 2)
	if _, err := io.ReadFull(f, sig); err != nil {
		return "", fmt.Errorf("file too small for boot sector (< 512 bytes): %w", err)
	}

	if bytes.Equal(sig, mbrSignature) {
		return VolumeFormatRaw, nil
	}

	return "", fmt.Errorf("unsupported or invalid image: not qcow2 and missing boot sector signature (0x55aa at offset 510)")
}
