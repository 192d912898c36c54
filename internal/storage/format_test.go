package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectImageFormat(t *testing.T) {
	tests := []struct {
		name       string
		setupFile  func(string) error
		wantFormat VolumeFormat
		wantErr    bool
	}{
		{
			name: "qcow2 image with valid magic",
			setupFile: func(path string) error {
				data := []byte{0x51, 0x46, 0x49, 0xfb, 0x00, 0x00, 0x00, 0x03}
				data = append(data, make([]byte, 504)...)
				return os.WriteFile(path, data, 0644)
			},
			wantFormat: VolumeFormatQCOW2,
		},
		{
			name: "bootable raw image with MBR signature",
			setupFile: func(path string) error {
				data := make([]byte, 512)
				data[510] = 0x55
				data[511] = 0xaa
				return os.WriteFile(path, data, 0644)
			},
			wantFormat: VolumeFormatRaw,
		},
		{
			name: "non-bootable file without signature",
			setupFile: func(path string) error {
				return os.WriteFile(path, make([]byte, 512), 0644)
			},
			wantErr: true,
		},
		{
			name: "reversed signature bytes",
			setupFile: func(path string) error {
				data := make([]byte, 512)
				data[510] = 0xaa
				data[511] = 0x55
				return os.WriteFile(path, data, 0644)
			},
			wantErr: true,
		},
		{
			name: "file too small for magic",
			setupFile: func(path string) error {
				return os.WriteFile(path, []byte{0x01, 0x02}, 0644)
			},
			wantErr: true,
		},
		{
			name: "file too small for boot sector",
			setupFile: func(path string) error {
				return os.WriteFile(path, make([]byte, 256), 0644)
			},
			wantErr: true,
		},
		{
			name:      "non-existent file",
			setupFile: func(path string) error { return nil },
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(t.TempDir(), "test-image")

			if err := tt.setupFile(filePath); err != nil {
				t.Fatalf("Failed to setup test file: %v", err)
			}

			format, err := DetectImageFormat(filePath)

			if (err != nil) != tt.wantErr {
				t.Errorf("DetectImageFormat() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if format != tt.wantFormat {
				t.Errorf("DetectImageFormat() = %v, want %v", format, tt.wantFormat)
			}
		})
	}
}
