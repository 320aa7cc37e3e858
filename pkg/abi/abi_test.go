package abi

import "testing"

func TestModeWordSize(t *testing.T) {
	if got := I386.WordSize(); got != 4 {
		t.Errorf("I386.WordSize() = %d, want 4", got)
	}
	if got := X86_64.WordSize(); got != 8 {
		t.Errorf("X86_64.WordSize() = %d, want 8", got)
	}
}

func TestFlagsToMode(t *testing.T) {
	tests := []struct {
		name  string
		flags uint64
		want  ModeBits
	}{
		{"O_RDONLY", ORdOnly, FileRead},
		{"O_WRONLY", OWrOnly, FileWrite},
		{"O_RDWR", ORdWr, FileRead | FileWrite},
		{"O_RDONLY|O_CREAT", ORdOnly | OCreat, FileRead | FileWrite},
		{"O_RDONLY|O_TRUNC", ORdOnly | OTrunc, FileRead | FileWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlagsToMode(tt.flags); got != tt.want {
				t.Errorf("FlagsToMode(%#x) = %s, want %s", tt.flags, got, tt.want)
			}
		})
	}
}

func TestModeBitsString(t *testing.T) {
	if got := (FileRead | FileWrite).String(); got != "FILE_READ|FILE_WRITE" {
		t.Errorf("String() = %q", got)
	}
	if got := ModeBits(0).String(); got != "0" {
		t.Errorf("String() for zero value = %q, want \"0\"", got)
	}
}
