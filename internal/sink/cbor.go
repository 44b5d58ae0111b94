package sink

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"esparse/internal/conflict"
	"esparse/internal/fileutil"
)

const checkInterval = 1024

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same records
// always produce identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sink: CBOR encoder initialization failed: " + err.Error())
	}
}

// CBOR writes one <TYPE>.cbor file per record type holding a CBOR sequence
// (RFC 8742) of rows.
type CBOR struct {
	Dir string
}

// NewCBOR returns a sink writing under dir.
func NewCBOR(dir string) *CBOR {
	return &CBOR{Dir: dir}
}

// Path returns the file written for recordType.
func (s *CBOR) Path(recordType string) string {
	return filepath.Join(s.Dir, fileName(recordType, ".cbor"))
}

func (s *CBOR) Write(ctx context.Context, recordType string, records []conflict.ResolvedRecord) error {
	path := s.Path(recordType)
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := encMode.NewEncoder(w)
		for i, r := range records {
			if i%checkInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := enc.Encode(NewRow(r)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
