package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"esparse/internal/conflict"
	"esparse/internal/fileutil"
)

// JSONLines writes one <TYPE>.jsonl file per record type, one object per
// line, in the order the records were handed over.
type JSONLines struct {
	Dir string
}

// NewJSONLines returns a sink writing under dir.
func NewJSONLines(dir string) *JSONLines {
	return &JSONLines{Dir: dir}
}

// Path returns the file written for recordType.
func (s *JSONLines) Path(recordType string) string {
	return filepath.Join(s.Dir, fileName(recordType, ".jsonl"))
}

func (s *JSONLines) Write(ctx context.Context, recordType string, records []conflict.ResolvedRecord) error {
	path := s.Path(recordType)
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
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
