// Package spec turns the positional argument grammar into validated
// machine and cluster specifications.
//
// The grammar is deliberately terse: a bare token may be a memory size
// (4G), a CPU count (2cpus), a disk assignment (disk=20G), an address
// (10.0.0.5/24), the literal dhcp, an image variant, a machine name
// marker (:web), or the group separator (--). Disambiguation is purely
// lexical, using a fixed priority order, so parsing is deterministic.
package spec

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// TokenKind identifies what a single argument token means.
type TokenKind int

const (
	// KindUnrecognized is a token that matched no rule.
	KindUnrecognized TokenKind = iota
	// KindInvalid is a token that matched a rule's shape but failed
	// its validation (bad size unit, prefix out of range, ...).
	KindInvalid
	// KindGroupSeparator is the literal "--" between machine runs.
	KindGroupSeparator
	// KindNameMarker is ":name", naming the machine run it starts.
	KindNameMarker
	// KindDiskSize is "disk=SIZE".
	KindDiskSize
	// KindMemorySize is a bare size such as "4G" or "512M".
	KindMemorySize
	// KindCPUCount is "<n>cpus" or "<n>cpu".
	KindCPUCount
	// KindDHCPInterface is the literal "dhcp" (case-insensitive).
	KindDHCPInterface
	// KindStaticInterface is a CIDR address such as "10.0.0.5/24".
	KindStaticInterface
	// KindVariant is a known image variant keyword.
	KindVariant
)

// String returns a short human-readable name for the kind.
func (k TokenKind) String() string {
	switch k {
	case KindGroupSeparator:
		return "group separator"
	case KindNameMarker:
		return "name marker"
	case KindDiskSize:
		return "disk size"
	case KindMemorySize:
		return "memory size"
	case KindCPUCount:
		return "cpu count"
	case KindDHCPInterface:
		return "dhcp interface"
	case KindStaticInterface:
		return "static interface"
	case KindVariant:
		return "variant"
	case KindInvalid:
		return "invalid"
	default:
		return "unrecognized"
	}
}

// Token is one classified argument token. Kind selects which value
// fields are meaningful.
type Token struct {
	Kind TokenKind
	Text string // the token exactly as given

	Name    string // KindNameMarker: machine name without the sigil
	Bytes   uint64 // KindMemorySize, KindDiskSize
	CPUs    int    // KindCPUCount
	Address string // KindStaticInterface: dotted-quad address
	Prefix  int    // KindStaticInterface: prefix length 0..32
	Variant string // KindVariant
	Reason  string // KindInvalid: why validation failed
}

const (
	nameSigil      = ":"
	groupSeparator = "--"
	diskKey        = "disk="
)

var (
	// Machine names follow libvirt domain naming: alphanumeric start,
	// then alphanumerics, dashes and underscores. Case is preserved.
	nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

	sizeRe = regexp.MustCompile(`^([0-9]+)([a-zA-Z])$`)
	cpuRe  = regexp.MustCompile(`^([0-9]+)cpus?$`)
	cidrRe = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}/[0-9]{1,3}$`)
)

// Classify classifies one token. It is pure and never fails: tokens
// that look like a recognized form but fail validation come back as
// KindInvalid with a reason, everything else unmatched comes back as
// KindUnrecognized.
//
// Rules are tried in priority order; the first match wins:
//
//  1. "--" and ":name"
//  2. disk=SIZE
//  3. bare size (memory)
//  4. <n>cpus
//  5. dhcp
//  6. A.B.C.D/N
//  7. variant keyword
func Classify(text string) Token {
	tok := Token{Kind: KindUnrecognized, Text: text}

	// Rule 1: separator and name marker.
	if text == groupSeparator {
		tok.Kind = KindGroupSeparator
		return tok
	}
	if strings.HasPrefix(text, nameSigil) {
		name := strings.TrimPrefix(text, nameSigil)
		if name == "" {
			return invalid(text, "empty machine name")
		}
		if !nameRe.MatchString(name) {
			return invalid(text, fmt.Sprintf("invalid machine name %q", name))
		}
		tok.Kind = KindNameMarker
		tok.Name = name
		return tok
	}

	// Rule 2: disk=SIZE.
	if strings.HasPrefix(text, diskKey) {
		value := strings.TrimPrefix(text, diskKey)
		bytes, err := parseSize(value)
		if err != nil {
			return invalid(text, err.Error())
		}
		tok.Kind = KindDiskSize
		tok.Bytes = bytes
		return tok
	}

	// Rule 3: bare size means memory. A digits+single-letter token is
	// unambiguously size-shaped ("2cpus" has a longer suffix and falls
	// through to rule 4), so a bad unit is invalid rather than
	// unrecognized.
	if m := sizeRe.FindStringSubmatch(text); m != nil {
		bytes, err := parseSize(text)
		if err != nil {
			return invalid(text, err.Error())
		}
		tok.Kind = KindMemorySize
		tok.Bytes = bytes
		return tok
	}

	// Rule 4: CPU count.
	if m := cpuRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return invalid(text, "cpu count must be a positive integer")
		}
		tok.Kind = KindCPUCount
		tok.CPUs = n
		return tok
	}

	// Rule 5: dhcp literal, case-insensitive.
	if strings.EqualFold(text, "dhcp") {
		tok.Kind = KindDHCPInterface
		return tok
	}

	// Rule 6: CIDR address.
	if cidrRe.MatchString(text) {
		ip, ipnet, err := net.ParseCIDR(text)
		if err != nil {
			return invalid(text, "malformed address")
		}
		prefix, _ := ipnet.Mask.Size()
		tok.Kind = KindStaticInterface
		tok.Address = ip.String()
		tok.Prefix = prefix
		return tok
	}

	// Rule 7: image variant keyword.
	if KnownVariant(text) {
		tok.Kind = KindVariant
		tok.Variant = text
		return tok
	}

	return tok
}

func invalid(text, reason string) Token {
	return Token{Kind: KindInvalid, Text: text, Reason: reason}
}

const (
	sizeKiB = uint64(1) << 10
	sizeMiB = uint64(1) << 20
	sizeGiB = uint64(1) << 30
	sizeTiB = uint64(1) << 40
)

func unitMultiplier(unit string) (uint64, bool) {
	switch strings.ToUpper(unit) {
	case "K":
		return sizeKiB, true
	case "M":
		return sizeMiB, true
	case "G":
		return sizeGiB, true
	case "T":
		return sizeTiB, true
	default:
		return 0, false
	}
}

// parseSize parses "<digits><unit>" into bytes. Units are the binary
// K, M, G and T, accepted in either case.
func parseSize(text string) (uint64, error) {
	m := sizeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("size must be <number><unit>, e.g. 4G")
	}
	mult, ok := unitMultiplier(m[2])
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", m[2])
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("size value %q out of range", m[1])
	}
	if n == 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	if n > ^uint64(0)/mult {
		return 0, fmt.Errorf("size %q too large", text)
	}
	return n * mult, nil
}

// FormatSize renders bytes in the canonical token form, using the
// largest binary unit that divides the value exactly.
func FormatSize(bytes uint64) string {
	switch {
	case bytes >= sizeTiB && bytes%sizeTiB == 0:
		return fmt.Sprintf("%dT", bytes/sizeTiB)
	case bytes >= sizeGiB && bytes%sizeGiB == 0:
		return fmt.Sprintf("%dG", bytes/sizeGiB)
	case bytes >= sizeMiB && bytes%sizeMiB == 0:
		return fmt.Sprintf("%dM", bytes/sizeMiB)
	case bytes >= sizeKiB && bytes%sizeKiB == 0:
		return fmt.Sprintf("%dK", bytes/sizeKiB)
	default:
		return fmt.Sprintf("%d", bytes)
	}
}

// Canonical renders the token back into canonical argument form.
// Classifying the result reproduces the same token value, which keeps
// specs printable and re-parseable.
func (t Token) Canonical() string {
	switch t.Kind {
	case KindMemorySize:
		return FormatSize(t.Bytes)
	case KindDiskSize:
		return diskKey + FormatSize(t.Bytes)
	case KindCPUCount:
		return fmt.Sprintf("%dcpus", t.CPUs)
	case KindNameMarker:
		return nameSigil + t.Name
	case KindDHCPInterface:
		return "dhcp"
	case KindStaticInterface:
		return fmt.Sprintf("%s/%d", t.Address, t.Prefix)
	case KindVariant:
		return t.Variant
	case KindGroupSeparator:
		return groupSeparator
	default:
		return t.Text
	}
}
