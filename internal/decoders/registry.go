package decoders

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"esparse/internal/subrecord"
)

var (
	ErrDecode           = errors.New("decode record")
	ErrDuplicateDecoder = errors.New("decoder already registered")
)

// Decoder turns a record's subrecords into a structured value.
type Decoder interface {
	Decode(recordType string, subs []subrecord.Subrecord) (any, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(recordType string, subs []subrecord.Subrecord) (any, error)

func (f DecoderFunc) Decode(recordType string, subs []subrecord.Subrecord) (any, error) {
	return f(recordType, subs)
}

// DecodeError names the record type and subrecord that failed to decode.
type DecodeError struct {
	Type string
	Tag  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("decode %s.%s: %v", e.Type, e.Tag, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// Registry dispatches on the 4-byte record type. Types without a registered
// decoder fall back to the generic one.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	fallback Decoder
}

// NewRegistry returns a registry holding only the generic fallback.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
		fallback: DecoderFunc(decodeGeneric),
	}
}

// Builtin returns a registry with every decoder this package ships.
func Builtin() *Registry {
	r := NewRegistry()
	_ = r.Register("GLOB", DecoderFunc(decodeGlobal))
	_ = r.Register("KYWD", DecoderFunc(decodeKeyword))
	_ = r.Register("GMST", DecoderFunc(decodeGameSetting))
	return r
}

// Register binds a decoder to a record type.
func (r *Registry) Register(recordType string, d Decoder) error {
	if len(recordType) != 4 {
		return fmt.Errorf("register decoder: record type %q must be 4 characters", recordType)
	}
	if d == nil {
		return fmt.Errorf("register decoder %s: nil decoder", recordType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[recordType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDecoder, recordType)
	}
	r.decoders[recordType] = d
	return nil
}

// Lookup returns the decoder registered for recordType, without fallback.
func (r *Registry) Lookup(recordType string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[recordType]
	return d, ok
}

// Types lists the record types with a dedicated decoder.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Decode runs the decoder for recordType, or the generic one.
func (r *Registry) Decode(recordType string, subs []subrecord.Subrecord) (any, error) {
	d, ok := r.Lookup(recordType)
	if !ok {
		d = r.fallback
	}
	return d.Decode(recordType, subs)
}
