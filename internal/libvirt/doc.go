// Package libvirt wraps github.com/digitalocean/go-libvirt with the
// small amount of plumbing the rest of the tool needs:
//
//   - Connection management (connect, disconnect, ping) over the local
//     Unix socket
//   - Domain XML generation from machine parameters
//
// The Client type owns the connection and exposes the underlying
// *libvirt.Libvirt for packages that drive the libvirt API directly.
//
//	client, err := libvirt.Connect("", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	xml, err := libvirt.GenerateDomainXML(&libvirt.DomainParams{...})
//	if err != nil {
//	    return err
//	}
//	dom, err := client.Libvirt().DomainDefineXML(xml)
//
// This package defines no interfaces of its own. Consumers
// (internal/vm, internal/storage, internal/metadata) each declare a
// small interface naming only the libvirt calls they make, which
// *libvirt.Libvirt satisfies implicitly and mocks satisfy in tests.
package libvirt
