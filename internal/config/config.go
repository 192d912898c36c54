// Package config loads spinup's runtime configuration.
//
// Everything has a working default; users override selectively through
// SPINUP_* environment variables or an optional spinup.yaml in the
// user config directory. Nothing here is required for first use beyond
// a base image in the image pool.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"spinup/internal/spec"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Socket is the libvirt Unix socket path; empty selects the
	// client's default.
	Socket string
	// ConnectTimeout bounds establishing the libvirt connection.
	ConnectTimeout time.Duration
	// OpTimeout bounds one per-machine backend operation.
	OpTimeout time.Duration
	// LockTimeout bounds waiting for the cluster lock.
	LockTimeout time.Duration
	// DestroyGrace is how long a machine gets to shut down cleanly
	// before being force-stopped.
	DestroyGrace time.Duration
	// Workers caps concurrent backend operations within one batch.
	Workers int

	// StateDir overrides the cluster record directory; empty selects
	// the state store's default.
	StateDir string

	// ImagePool / VMPool name the libvirt storage pools, with their
	// on-disk paths used when the pools have to be created.
	ImagePool     string
	VMPool        string
	ImagePoolPath string
	VMPoolPath    string
	// ImageDir is the host directory searched for base images that
	// are not in the image pool yet.
	ImageDir string

	// Bridge is the host bridge machine interfaces attach to.
	Bridge string

	// Images maps a variant keyword to its base image volume in the
	// image pool.
	Images map[string]string

	// SSHUser overrides the login user for spinup ssh; empty derives
	// it from the machine's variant.
	SSHUser string
	SSHPort int
	// SSHPublicKey is the authorized key file injected via cloud-init;
	// empty discovers one (or generates a keypair).
	SSHPublicKey string

	// Gateway and Nameservers complete static interface configs.
	// Optional; DHCP interfaces never need them.
	Gateway     string
	Nameservers []string
}

// Load builds the configuration from defaults, the optional config
// file and SPINUP_* environment overrides, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("socket", "")
	v.SetDefault("connect_timeout", 5*time.Second)
	v.SetDefault("op_timeout", 2*time.Minute)
	v.SetDefault("lock_timeout", 10*time.Second)
	v.SetDefault("destroy_grace", 30*time.Second)
	v.SetDefault("workers", 4)
	v.SetDefault("state_dir", "")
	v.SetDefault("image_pool", "spinup-images")
	v.SetDefault("vm_pool", "spinup-vms")
	v.SetDefault("image_pool_path", "/var/lib/libvirt/images/spinup/images")
	v.SetDefault("vm_pool_path", "/var/lib/libvirt/images/spinup/vms")
	v.SetDefault("image_dir", "/var/lib/libvirt/images")
	v.SetDefault("bridge", "virbr0")
	v.SetDefault("images", map[string]string{
		spec.VariantUbuntu: "ubuntu-cloudimg-amd64.qcow2",
		spec.VariantCoreOS: "coreos-stable-qemu.qcow2",
	})
	v.SetDefault("ssh_user", "")
	v.SetDefault("ssh_port", 22)
	v.SetDefault("ssh_public_key", "")
	v.SetDefault("gateway", "")
	v.SetDefault("nameservers", []string{})

	v.SetEnvPrefix("spinup")
	v.AutomaticEnv()

	v.SetConfigName("spinup")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "spinup"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Socket:         v.GetString("socket"),
		ConnectTimeout: v.GetDuration("connect_timeout"),
		OpTimeout:      v.GetDuration("op_timeout"),
		LockTimeout:    v.GetDuration("lock_timeout"),
		DestroyGrace:   v.GetDuration("destroy_grace"),
		Workers:        v.GetInt("workers"),
		StateDir:       v.GetString("state_dir"),
		ImagePool:      v.GetString("image_pool"),
		VMPool:         v.GetString("vm_pool"),
		ImagePoolPath:  v.GetString("image_pool_path"),
		VMPoolPath:     v.GetString("vm_pool_path"),
		ImageDir:       v.GetString("image_dir"),
		Bridge:         v.GetString("bridge"),
		Images:         v.GetStringMapString("images"),
		SSHUser:        v.GetString("ssh_user"),
		SSHPort:        v.GetInt("ssh_port"),
		SSHPublicKey:   v.GetString("ssh_public_key"),
		Gateway:        v.GetString("gateway"),
		Nameservers:    v.GetStringSlice("nameservers"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("op_timeout must be positive, got %s", c.OpTimeout)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if c.DestroyGrace <= 0 {
		return fmt.Errorf("destroy_grace must be positive, got %s", c.DestroyGrace)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ImagePool == "" || c.VMPool == "" {
		return fmt.Errorf("image_pool and vm_pool must not be empty")
	}
	if c.ImagePool == c.VMPool {
		return fmt.Errorf("image_pool and vm_pool must differ, both are %q", c.ImagePool)
	}
	if c.ImageDir == "" {
		return fmt.Errorf("image_dir must not be empty")
	}
	if c.Bridge == "" {
		return fmt.Errorf("bridge must not be empty")
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		return fmt.Errorf("ssh_port %d out of range", c.SSHPort)
	}
	if len(c.Images) == 0 {
		return fmt.Errorf("images must map at least one variant")
	}
	for variant, image := range c.Images {
		if image == "" {
			return fmt.Errorf("images[%s] must not be empty", variant)
		}
	}
	return nil
}

// ImageForVariant resolves the base image volume for a variant.
func (c *Config) ImageForVariant(variant string) (string, error) {
	image, ok := c.Images[variant]
	if !ok || image == "" {
		return "", fmt.Errorf("no image configured for variant %q", variant)
	}
	return image, nil
}

// SSHUserFor returns the login user for a machine: the configured
// override, or the variant's conventional cloud image user.
func (c *Config) SSHUserFor(variant string) string {
	if c.SSHUser != "" {
		return c.SSHUser
	}
	switch variant {
	case spec.VariantCoreOS:
		return "core"
	default:
		return "ubuntu"
	}
}
