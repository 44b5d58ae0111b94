package sink

import (
	"fmt"

	"esparse/internal/config"
	"esparse/internal/extract"
	"esparse/internal/store"
)

// FromConfig opens the sinks named by output.formats. The returned close
// function releases the store when one was opened.
func FromConfig(cfg *config.Config) ([]extract.Sink, func() error, error) {
	var (
		sinks []extract.Sink
		st    *store.Store
	)
	closeFn := func() error {
		if st != nil {
			return st.Close()
		}
		return nil
	}
	for _, format := range cfg.Output.Formats {
		switch format {
		case config.FormatSQLite:
			opened, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return nil, nil, fmt.Errorf("open store: %w", err)
			}
			st = opened
			sinks = append(sinks, st)
		case config.FormatJSONL:
			sinks = append(sinks, NewJSONLines(cfg.Paths.OutputDir))
		case config.FormatCBOR:
			sinks = append(sinks, NewCBOR(cfg.Paths.OutputDir))
		default:
			_ = closeFn()
			return nil, nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	return sinks, closeFn, nil
}
