package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureImage makes sure the named base image is present in the images
// pool. If it is missing but a file with the same name exists in the
// host image directory, it is imported. Otherwise the error names both
// locations so the user knows where to put the image.
func (m *Manager) EnsureImage(ctx context.Context, imageName string) error {
	exists, err := m.ImageExists(ctx, imageName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hostPath := filepath.Join(m.cfg.HostImageDir, imageName)
	if _, err := os.Stat(hostPath); err != nil {
		return fmt.Errorf("base image %q not found in pool %q or at %s; download it to either location",
			imageName, m.cfg.ImagesPool, hostPath)
	}

	if err := m.ImportImage(ctx, hostPath, imageName); err != nil {
		return fmt.Errorf("failed to import base image from %s: %w", hostPath, err)
	}

	return nil
}

// ImportImage imports a base image from a local file into the images
// pool. Only qcow2 images are accepted; boot volumes are built as
// qcow2 overlays on top of the imported image.
func (m *Manager) ImportImage(ctx context.Context, filePath, imageName string) error {
	format, err := DetectImageFormat(filePath)
	if err != nil {
		return fmt.Errorf("failed to detect image format: %w", err)
	}
	if format != VolumeFormatQCOW2 {
		return fmt.Errorf("image %s is %s; only qcow2 base images are supported (convert with qemu-img)", filePath, format)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to stat image file: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	spec := VolumeSpec{
		Name:          imageName,
		Type:          VolumeTypeBaseImage,
		Format:        VolumeFormatQCOW2,
		CapacityBytes: uint64(info.Size()),
	}

	if err := m.CreateVolume(ctx, m.cfg.ImagesPool, spec); err != nil {
		return fmt.Errorf("failed to create image volume: %w", err)
	}

	if err := m.WriteVolumeData(ctx, m.cfg.ImagesPool, imageName, data); err != nil {
		// Don't leave a half-written image volume behind.
		_ = m.DeleteVolume(ctx, m.cfg.ImagesPool, imageName)
		return fmt.Errorf("failed to upload image data: %w", err)
	}

	return nil
}

// ImagePath gets the full filesystem path for a base image.
func (m *Manager) ImagePath(ctx context.Context, imageName string) (string, error) {
	return m.GetVolumePath(ctx, m.cfg.ImagesPool, imageName)
}

// ImageExists checks if a base image exists in the images pool.
func (m *Manager) ImageExists(ctx context.Context, imageName string) (bool, error) {
	return m.VolumeExists(ctx, m.cfg.ImagesPool, imageName)
}
