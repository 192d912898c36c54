package spec

import (
	"errors"
	"reflect"
	"testing"
)

func defaultMachine(name string) MachineSpec {
	return MachineSpec{
		Name:        name,
		MemoryBytes: DefaultMemoryBytes,
		CPUCount:    DefaultCPUCount,
		DiskBytes:   DefaultDiskBytes,
		Variant:     DefaultVariant,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []MachineSpec
	}{
		{
			name: "no arguments yields one default machine",
			args: nil,
			want: []MachineSpec{defaultMachine("foovm0")},
		},
		{
			name: "memory and cpus",
			args: []string{"4G", "6cpus"},
			want: []MachineSpec{{
				Name:        "foovm0",
				MemoryBytes: 4 << 30,
				CPUCount:    6,
				DiskBytes:   DefaultDiskBytes,
				Variant:     DefaultVariant,
			}},
		},
		{
			name: "two named machines",
			args: []string{":foo", "2G", "2cpus", "--", ":bar", "8G", "4cpus"},
			want: []MachineSpec{
				{Name: "foo", MemoryBytes: 2 << 30, CPUCount: 2, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
				{Name: "bar", MemoryBytes: 8 << 30, CPUCount: 4, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
			},
		},
		{
			name: "name marker alone splits runs",
			args: []string{":foo", "2G", ":bar", "8G"},
			want: []MachineSpec{
				{Name: "foo", MemoryBytes: 2 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
				{Name: "bar", MemoryBytes: 8 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
			},
		},
		{
			name: "mid-run name marker starts a new machine",
			args: []string{"2G", ":db", "4G"},
			want: []MachineSpec{
				{Name: "foovm0", MemoryBytes: 2 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
				{Name: "db", MemoryBytes: 4 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
			},
		},
		{
			name: "static then dhcp interfaces keep order",
			args: []string{"10.3.0.10/24", "dhcp"},
			want: []MachineSpec{{
				Name:        "foovm0",
				MemoryBytes: DefaultMemoryBytes,
				CPUCount:    DefaultCPUCount,
				DiskBytes:   DefaultDiskBytes,
				Variant:     DefaultVariant,
				Interfaces: []NetworkInterfaceSpec{
					{Mode: ModeStatic, Address: "10.3.0.10", PrefixLen: 24},
					{Mode: ModeDHCP},
				},
			}},
		},
		{
			name: "disk assignment and variant",
			args: []string{"disk=40G", "coreos"},
			want: []MachineSpec{{
				Name:        "foovm0",
				MemoryBytes: DefaultMemoryBytes,
				CPUCount:    DefaultCPUCount,
				DiskBytes:   40 << 30,
				Variant:     VariantCoreOS,
			}},
		},
		{
			name: "leading separator yields a default machine first",
			args: []string{"--", "4G"},
			want: []MachineSpec{
				defaultMachine("foovm0"),
				{Name: "foovm1", MemoryBytes: 4 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
			},
		},
		{
			name: "trailing separator yields a default machine last",
			args: []string{"4G", "--"},
			want: []MachineSpec{
				{Name: "foovm0", MemoryBytes: 4 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
				defaultMachine("foovm1"),
			},
		},
		{
			name: "generated names skip nothing",
			args: []string{"--", "--"},
			want: []MachineSpec{
				defaultMachine("foovm0"),
				defaultMachine("foovm1"),
				defaultMachine("foovm2"),
			},
		},
		{
			name: "adjacent name markers each start a machine",
			args: []string{":a", ":b"},
			want: []MachineSpec{
				defaultMachine("a"),
				defaultMachine("b"),
			},
		},
		{
			name: "names differing only by case are distinct",
			args: []string{":Foo", "2G", "--", ":foo", "4G"},
			want: []MachineSpec{
				{Name: "Foo", MemoryBytes: 2 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
				{Name: "foo", MemoryBytes: 4 << 30, CPUCount: DefaultCPUCount, DiskBytes: DefaultDiskBytes, Variant: DefaultVariant},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.args)
			if err != nil {
				t.Fatalf("Parse(%v) returned error: %v", tt.args, err)
			}
			if !reflect.DeepEqual(got.Machines, tt.want) {
				t.Errorf("Parse(%v) = %+v, want %+v", tt.args, got.Machines, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantKind ParseErrorKind
		wantTok  string
		wantPos  int
	}{
		{
			name:     "unrecognized token",
			args:     []string{"4G", "banana"},
			wantKind: ErrInvalidArgument,
			wantTok:  "banana",
			wantPos:  2,
		},
		{
			name:     "invalid size unit",
			args:     []string{"4X"},
			wantKind: ErrInvalidToken,
			wantTok:  "4X",
			wantPos:  1,
		},
		{
			name:     "invalid prefix length",
			args:     []string{"10.0.0.1/40"},
			wantKind: ErrInvalidToken,
			wantTok:  "10.0.0.1/40",
			wantPos:  1,
		},
		{
			name:     "duplicate memory",
			args:     []string{"4G", "8G"},
			wantKind: ErrDuplicateField,
			wantTok:  "8G",
			wantPos:  2,
		},
		{
			name:     "duplicate cpus",
			args:     []string{"2cpus", "4cpus"},
			wantKind: ErrDuplicateField,
			wantTok:  "4cpus",
			wantPos:  2,
		},
		{
			name:     "duplicate disk",
			args:     []string{"disk=10G", "disk=20G"},
			wantKind: ErrDuplicateField,
			wantTok:  "disk=20G",
			wantPos:  2,
		},
		{
			name:     "duplicate variant",
			args:     []string{"ubuntu", "coreos"},
			wantKind: ErrDuplicateField,
			wantTok:  "coreos",
			wantPos:  2,
		},
		{
			name:     "duplicate machine name",
			args:     []string{":foo", "2G", "--", ":foo", "4G"},
			wantKind: ErrDuplicateMachineName,
		},
		{
			name:     "explicit name collides with generated name",
			args:     []string{":foovm1", "--", "2G"},
			wantKind: ErrDuplicateMachineName,
		},
		{
			name:     "invalid token after separator keeps absolute position",
			args:     []string{"2G", "--", "0cpus"},
			wantKind: ErrInvalidToken,
			wantTok:  "0cpus",
			wantPos:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			if err == nil {
				t.Fatalf("Parse(%v) succeeded, want %s", tt.args, tt.wantKind)
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%v) error %T, want *ParseError", tt.args, err)
			}
			if perr.Kind != tt.wantKind {
				t.Errorf("error kind = %s, want %s", perr.Kind, tt.wantKind)
			}
			if tt.wantTok != "" && perr.Token != tt.wantTok {
				t.Errorf("error token = %q, want %q", perr.Token, tt.wantTok)
			}
			if tt.wantPos != 0 && perr.Position != tt.wantPos {
				t.Errorf("error position = %d, want %d", perr.Position, tt.wantPos)
			}
		})
	}
}

// Tokens within one run are order-independent.
func TestParseRunCommutativity(t *testing.T) {
	orders := [][]string{
		{":foo", "2G", "2cpus", "disk=20G", "--", ":bar", "8G", "4cpus"},
		{":foo", "2cpus", "disk=20G", "2G", "--", ":bar", "4cpus", "8G"},
		{":foo", "disk=20G", "2G", "2cpus", "--", ":bar", "8G", "4cpus"},
	}

	var first *ClusterSpec
	for i, args := range orders {
		got, err := Parse(args)
		if err != nil {
			t.Fatalf("Parse(%v) returned error: %v", args, err)
		}
		if first == nil {
			first = got
			continue
		}
		if !reflect.DeepEqual(got, first) {
			t.Errorf("order %d produced a different spec: %+v vs %+v", i, got, first)
		}
	}
}

// Identical input must always produce an identical spec.
func TestParseDeterminism(t *testing.T) {
	args := []string{":a", "2G", "10.0.0.5/24", "dhcp", "--", ":b", "coreos", "disk=30G"}

	first, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Parse(args)
		if err != nil {
			t.Fatalf("Parse returned error on repeat %d: %v", i, err)
		}
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("repeat %d differs: %+v vs %+v", i, again, first)
		}
	}
}
