package imgdec

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Kind is the stable tag of a DecodeError. Callers branch on it.
type Kind int

const (
	// UnrecognizedFormat means no magic number matched the input.
	UnrecognizedFormat Kind = iota + 1
	// TruncatedData means the input ended before the stream did.
	TruncatedData
	// CorruptData means the stream violates its format.
	CorruptData
	// DimensionTooLarge means the declared size exceeds the configured limits.
	DimensionTooLarge
	// UnsupportedFeature means the stream is valid but uses a variant
	// this package does not decode.
	UnsupportedFeature
	// OutOfMemory means the input or the decoded output exceeds the byte budget.
	OutOfMemory
)

var kindNames = [...]string{
	UnrecognizedFormat: "UnrecognizedFormat",
	TruncatedData:      "TruncatedData",
	CorruptData:        "CorruptData",
	DimensionTooLarge:  "DimensionTooLarge",
	UnsupportedFeature: "UnsupportedFeature",
	OutOfMemory:        "OutOfMemory",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DecodeError is the only error type returned by Decode.
type DecodeError struct {
	Kind   Kind
	Format Format
	Detail string
	err    error
}

// Sentinels for errors.Is. A DecodeError matches the sentinel of its Kind
// whatever its Format and Detail.
var (
	ErrUnrecognizedFormat = &DecodeError{Kind: UnrecognizedFormat}
	ErrTruncatedData      = &DecodeError{Kind: TruncatedData}
	ErrCorruptData        = &DecodeError{Kind: CorruptData}
	ErrDimensionTooLarge  = &DecodeError{Kind: DimensionTooLarge}
	ErrUnsupportedFeature = &DecodeError{Kind: UnsupportedFeature}
	ErrOutOfMemory        = &DecodeError{Kind: OutOfMemory}
)

func (e *DecodeError) Error() string {
	s := "imgdec: "
	if e.Format != Unknown {
		s += e.Format.String() + ": "
	}
	s += e.Kind.String()
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

// Is reports whether target is a DecodeError of the same Kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

// Unwrap returns the lower-level error the DecodeError was mapped from, if any.
func (e *DecodeError) Unwrap() error { return e.err }

// KindOf returns the Kind carried by err, or 0 when err is not a DecodeError.
func KindOf(err error) Kind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func newError(k Kind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

func truncated(format string, args ...interface{}) error {
	return newError(TruncatedData, format, args...)
}

func corrupt(format string, args ...interface{}) error {
	return newError(CorruptData, format, args...)
}

func unsupported(format string, args ...interface{}) error {
	return newError(UnsupportedFeature, format, args...)
}

// errShort is returned by the input cursor when a read runs past the end.
var errShort = truncated("unexpected end of data")

// mapError converts an error produced by a codec or by a third-party
// bitstream decoder into a DecodeError tagged with f.
func mapError(f Format, err error) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		out := *de
		if out.Format == Unknown {
			out.Format = f
		}
		return &out
	}
	k := CorruptData
	if cause := errors.Cause(err); cause == io.EOF || cause == io.ErrUnexpectedEOF {
		k = TruncatedData
	}
	return &DecodeError{Kind: k, Format: f, Detail: err.Error(), err: err}
}
