package layer

import (
	"errors"
	"testing"

	"github.com/em3ndez/neon/pkg/keyspace"
	"github.com/em3ndez/neon/pkg/lsn"
)

func TestImageFileNameRoundTrip(t *testing.T) {
	start, err := keyspace.ParseKey("000000067F000032BE0000400000000070B6")
	if err != nil {
		t.Fatalf("Failed to parse key: %v", err)
	}
	end, err := keyspace.ParseKey("000000067F000032BE0000400000000080B6")
	if err != nil {
		t.Fatalf("Failed to parse key: %v", err)
	}

	name := ImageFileName{
		KeyRange: keyspace.Range{Start: start, End: end},
		LSN:      lsn.LSN(0x346BC568),
	}

	want := "000000067F000032BE0000400000000070B6-000000067F000032BE0000400000000080B6__00000000346BC568"
	if got := name.String(); got != want {
		t.Errorf("FileName: got %q, want %q", got, want)
	}

	parsed, err := ParseImageFileName(name.String())
	if err != nil {
		t.Fatalf("Failed to parse file name: %v", err)
	}
	if *parsed != name {
		t.Errorf("Round trip mismatch: got %+v, want %+v", *parsed, name)
	}
}

func TestParseImageFileNameErrors(t *testing.T) {
	bad := []string{
		"",
		"no-separator",
		"000000067F000032BE0000400000000070B6-000000067F000032BE0000400000000080B6", // missing LSN
		"zz-zz__00000000346BC568",
		"000000067F000032BE0000400000000070B6-000000067F000032BE0000400000000080B6__nothex",
	}
	for _, name := range bad {
		if _, err := ParseImageFileName(name); !errors.Is(err, ErrInvalidFileName) {
			t.Errorf("ParseImageFileName(%q): expected ErrInvalidFileName, got %v", name, err)
		}
	}
}
