package imgdec

// DecodeFunc decodes a whole encoded image into its native layout.
type DecodeFunc func(data []byte, opts *Options) (*RawImage, error)

// SizeFunc reads only the header of an encoded image.
type SizeFunc func(data []byte) (Size, error)

// Codec is a registered decoder entry point.
type Codec struct {
	Name   string
	Decode DecodeFunc
	Size   SizeFunc
}

// Registry routes a sniffed Format to its Codec. It is filled before use
// and must not be modified while decodes are in flight.
type Registry struct {
	codecs map[Format]Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Format]Codec)}
}

// Register binds c to f, replacing any previous binding.
func (r *Registry) Register(f Format, c Codec) {
	r.codecs[f] = c
}

func (r *Registry) lookup(f Format) (Codec, error) {
	c, ok := r.codecs[f]
	if !ok || f == Unknown || c.Decode == nil {
		return Codec{}, &DecodeError{Kind: UnrecognizedFormat, Format: f, Detail: "no codec registered"}
	}
	return c, nil
}

// DecodeWith hands data to the codec registered for f.
func (r *Registry) DecodeWith(f Format, data []byte, opts *Options) (*RawImage, error) {
	c, err := r.lookup(f)
	if err != nil {
		return nil, err
	}
	raw, err := c.Decode(data, opts)
	if err != nil {
		return nil, mapError(f, err)
	}
	return raw, nil
}

// SizeOf reads the header of data with the codec registered for f.
func (r *Registry) SizeOf(f Format, data []byte) (Size, error) {
	c, err := r.lookup(f)
	if err != nil {
		return Size{}, err
	}
	if c.Size == nil {
		return Size{}, &DecodeError{Kind: UnsupportedFeature, Format: f, Detail: "size probing not available"}
	}
	sz, err := c.Size(data)
	if err != nil {
		return Size{}, mapError(f, err)
	}
	return sz, nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry holding the built-in codecs.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// RegisterFormat adds a codec to the default registry. It is meant to be
// called from init functions.
func RegisterFormat(f Format, name string, decode DecodeFunc, size SizeFunc) {
	defaultRegistry.Register(f, Codec{Name: name, Decode: decode, Size: size})
}
