// Package metadata stores an ownership tag on libvirt domains using the
// custom metadata element of the domain XML. The tag records which cluster
// a domain belongs to, so destructive operations can refuse to touch a
// domain that merely shares a machine name with one of ours.
package metadata

import (
	"encoding/xml"
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

const (
	// Namespace is the XML namespace used for the ownership tag.
	Namespace = "http://spinup.dev/machine"
	// Key is the namespace prefix registered with libvirt for the tag.
	Key = "spinup"
)

// Tag marks a libvirt domain as managed by a spinup cluster.
type Tag struct {
	XMLName   xml.Name `xml:"machine"`
	Xmlns     string   `xml:"xmlns,attr"`
	ClusterID string   `xml:"cluster"`
	Machine   string   `xml:"name"`
	Variant   string   `xml:"variant,omitempty"`
}

// LibvirtClient defines the libvirt operations needed for domain metadata.
type LibvirtClient interface {
	DomainSetMetadata(Dom libvirt.Domain, Type int32, Metadata libvirt.OptString, Key libvirt.OptString, Uri libvirt.OptString, Flags libvirt.DomainModificationImpact) error
	DomainGetMetadata(Dom libvirt.Domain, Type int32, Uri libvirt.OptString, Flags libvirt.DomainModificationImpact) (string, error)
}

// Store writes the ownership tag to a domain's metadata element.
func Store(client LibvirtClient, domain libvirt.Domain, tag *Tag) error {
	if tag == nil {
		return fmt.Errorf("tag cannot be nil")
	}
	if tag.ClusterID == "" {
		return fmt.Errorf("tag cluster ID cannot be empty")
	}
	if tag.Machine == "" {
		return fmt.Errorf("tag machine name cannot be empty")
	}

	tag.Xmlns = Namespace

	xmlData, err := xml.Marshal(tag)
	if err != nil {
		return fmt.Errorf("failed to marshal tag to XML: %w", err)
	}

	err = client.DomainSetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{string(xmlData)},
		libvirt.OptString{Key},
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	if err != nil {
		return fmt.Errorf("failed to set domain metadata: %w", err)
	}

	return nil
}

// Load reads the ownership tag from a domain's metadata element. A domain
// without a tag in our namespace returns an error from libvirt.
func Load(client LibvirtClient, domain libvirt.Domain) (*Tag, error) {
	xmlData, err := client.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain metadata: %w", err)
	}

	var tag Tag
	if err := xml.Unmarshal([]byte(xmlData), &tag); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tag XML: %w", err)
	}

	return &tag, nil
}

// Owned reports whether a domain carries our tag for the given cluster.
// Any failure to read or parse the tag counts as not owned.
func Owned(client LibvirtClient, domain libvirt.Domain, clusterID string) bool {
	tag, err := Load(client, domain)
	if err != nil {
		return false
	}
	return tag.ClusterID == clusterID
}
