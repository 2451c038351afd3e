package imgdec

import (
	"fmt"
	"runtime"
)

// ImageDecoder is the typed boundary a host bridge is given at startup.
type ImageDecoder interface {
	Decode(data []byte) (*Image, error)
}

// Decoder decodes images under a fixed configuration. A Decoder holds no
// per-call state and is safe for concurrent use.
type Decoder struct {
	opts     Options
	registry *Registry
}

var _ ImageDecoder = (*Decoder)(nil)

// Option configures a Decoder.
type Option func(*Decoder)

// WithLimits sets the resource limits.
func WithLimits(l Limits) Option {
	return func(d *Decoder) { d.opts.Limits = l.withDefaults() }
}

// WithAnimation sets the policy for multi-frame input.
func WithAnimation(p AnimationPolicy) Option {
	return func(d *Decoder) { d.opts.Animation = p }
}

// WithRegistry replaces the built-in codec table.
func WithRegistry(r *Registry) Option {
	return func(d *Decoder) { d.registry = r }
}

// NewDecoder returns a Decoder with default limits, first-frame animation
// handling and the built-in codecs, adjusted by opts.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		opts:     Options{Limits: DefaultLimits()},
		registry: defaultRegistry,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Limits returns the limits d enforces.
func (d *Decoder) Limits() Limits { return d.opts.Limits }

var defaultDecoder = NewDecoder()

// Decode decodes data with the default limits.
func Decode(data []byte) (*Image, error) {
	return defaultDecoder.Decode(data)
}

// DecodeWithLimits decodes data under l.
func DecodeWithLimits(data []byte, l Limits) (*Image, error) {
	return NewDecoder(WithLimits(l)).Decode(data)
}

// DecodeSize reads the format and declared size of data without decoding
// any pixels.
func DecodeSize(data []byte) (Size, Format, error) {
	return defaultDecoder.DecodeSize(data)
}

// Decode sniffs, decodes and normalizes data. On error the returned Image
// is nil; the error is always a *DecodeError.
func (d *Decoder) Decode(data []byte) (img *Image, err error) {
	f, err := d.precheck(data)
	if err != nil {
		return nil, err
	}
	defer recoverTo(f, &img, &err)

	raw, err := d.registry.DecodeWith(f, data, &d.opts)
	if err != nil {
		return nil, err
	}
	img, err = normalize(raw)
	if err != nil {
		return nil, mapError(f, err)
	}
	return img, nil
}

// DecodeSize sniffs data and asks the matching codec for its header size.
func (d *Decoder) DecodeSize(data []byte) (sz Size, f Format, err error) {
	f, err = d.precheck(data)
	if err != nil {
		return Size{}, f, err
	}
	defer func() {
		if r := recover(); r != nil {
			sz, err = Size{}, panicError(f, r)
		}
	}()
	sz, err = d.registry.SizeOf(f, data)
	return sz, f, err
}

func (d *Decoder) precheck(data []byte) (Format, error) {
	if n := int64(len(data)); n > d.opts.Limits.MaxInputBytes {
		return Unknown, newError(OutOfMemory, "input of %d bytes exceeds budget of %d", n, d.opts.Limits.MaxInputBytes)
	}
	f := Sniff(data)
	if f == Unknown {
		if isMagicPrefix(data) {
			return Unknown, truncated("input ends inside the signature")
		}
		return Unknown, newError(UnrecognizedFormat, "no known signature")
	}
	return f, nil
}

func recoverTo(f Format, img **Image, err *error) {
	if r := recover(); r != nil {
		*img = nil
		*err = panicError(f, r)
	}
}

// panicError maps a panic escaping a bitstream decoder. Runtime errors such
// as index out of range mean the input drove the decoder off its tables.
func panicError(f Format, r interface{}) error {
	if re, ok := r.(runtime.Error); ok {
		return &DecodeError{Kind: CorruptData, Format: f, Detail: "decoder fault: " + re.Error(), err: re}
	}
	if e, ok := r.(error); ok {
		return mapError(f, e)
	}
	return &DecodeError{Kind: CorruptData, Format: f, Detail: fmt.Sprint("decoder fault: ", r)}
}
