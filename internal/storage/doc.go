// Package storage manages the libvirt storage pools and volumes that
// back machines.
//
// Two dir-backed pools are kept: an images pool holding the base cloud
// images machines boot from, and a vms pool holding per-machine boot
// volumes (qcow2 overlays backed by a base image) and cloud-init seed
// ISOs. Both are created on demand.
//
// Base images are expected in the images pool under the name the
// configuration maps each variant to. When a name is missing from the
// pool but the same file exists in the host image directory
// (/var/lib/libvirt/images by default), it is imported automatically.
//
// The Manager drives everything through the LibvirtClient interface,
// which *libvirt.Libvirt satisfies and tests mock.
package storage
