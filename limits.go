package imgdec

const (
	// DefaultMaxDimension caps width and height.
	DefaultMaxDimension = 16384
	// DefaultMaxInputBytes caps the encoded input size.
	DefaultMaxInputBytes = 256 << 20
	// DefaultMaxOutputBytes caps the decoded RGBA buffer together with any
	// full-frame state a codec keeps beside it.
	DefaultMaxOutputBytes = 1 << 30
)

// Limits bounds the resources a single decode may use. Zero fields take
// the package defaults.
type Limits struct {
	MaxWidth       int
	MaxHeight      int
	MaxInputBytes  int64
	MaxOutputBytes int64
}

// DefaultLimits returns the limits used by Decode.
func DefaultLimits() Limits {
	return Limits{
		MaxWidth:       DefaultMaxDimension,
		MaxHeight:      DefaultMaxDimension,
		MaxInputBytes:  DefaultMaxInputBytes,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxWidth <= 0 {
		l.MaxWidth = d.MaxWidth
	}
	if l.MaxHeight <= 0 {
		l.MaxHeight = d.MaxHeight
	}
	if l.MaxInputBytes <= 0 {
		l.MaxInputBytes = d.MaxInputBytes
	}
	if l.MaxOutputBytes <= 0 {
		l.MaxOutputBytes = d.MaxOutputBytes
	}
	return l
}

// check validates declared dimensions before any pixel storage exists.
func (l Limits) check(width, height int) error {
	return l.checkWorking(width, height, 0)
}

// checkWorking is check for codecs that hold extra bytes of full-frame
// state (coefficients, planes) next to the RGBA output.
func (l Limits) checkWorking(width, height int, extra int64) error {
	if width <= 0 || height <= 0 {
		return corrupt("invalid dimensions %dx%d", width, height)
	}
	if width > l.MaxWidth || height > l.MaxHeight {
		return newError(DimensionTooLarge, "%dx%d exceeds %dx%d", width, height, l.MaxWidth, l.MaxHeight)
	}
	if n := int64(width)*int64(height)*4 + extra; n > l.MaxOutputBytes {
		return newError(OutOfMemory, "%d bytes of pixel storage exceed budget of %d", n, l.MaxOutputBytes)
	}
	return nil
}

// AnimationPolicy decides what happens to multi-frame input.
type AnimationPolicy int

const (
	// FirstFrame decodes the first frame and ignores the rest.
	FirstFrame AnimationPolicy = iota
	// RejectAnimated fails multi-frame input with UnsupportedFeature.
	RejectAnimated
)

// Options is the per-call configuration handed to codecs.
type Options struct {
	Limits    Limits
	Animation AnimationPolicy
}

// frames applies the animation policy to a frame count.
func (o *Options) frames(n int) error {
	if n > 1 && o.Animation == RejectAnimated {
		return unsupported("animation with %d frames", n)
	}
	return nil
}
