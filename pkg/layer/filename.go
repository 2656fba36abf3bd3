package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/em3ndez/neon/pkg/keyspace"
	"github.com/em3ndez/neon/pkg/lsn"
)

// ErrInvalidFileName is returned when a file name does not parse as an
// image layer name
var ErrInvalidFileName = errors.New("invalid image layer file name")

// ImageFileName is the parsed form of an image layer file name:
// "<key start>-<key end>__<LSN>".
type ImageFileName struct {
	KeyRange keyspace.Range
	LSN      lsn.LSN
}

func (f ImageFileName) String() string {
	return fmt.Sprintf("%s-%s__%s", f.KeyRange.Start, f.KeyRange.End, f.LSN.FileName())
}

// ParseImageFileName parses an image layer file name.
func ParseImageFileName(name string) (*ImageFileName, error) {
	rangePart, lsnPart, ok := strings.Cut(name, "__")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	keyRange, err := keyspace.ParseRange(rangePart)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFileName, name, err)
	}
	l, err := lsn.ParseFileName(lsnPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFileName, name, err)
	}

	return &ImageFileName{KeyRange: keyRange, LSN: l}, nil
}
