// Package imgdec decodes untrusted JPEG, PNG, WebP, GIF and BMP bytes into
// interleaved 8-bit RGBA.
//
// Decoding sniffs the container from its magic number, hands the bytes to
// the codec registered for that format, and converts the codec's native
// pixel layout into an Image. Every failure is a *DecodeError whose Kind
// tells malformed input apart from resource limits:
//
//	img, err := imgdec.Decode(data)
//	switch {
//	case errors.Is(err, imgdec.ErrDimensionTooLarge):
//		// reject the upload
//	case err != nil:
//		// log imgdec.KindOf(err)
//	}
//
// Limits bound the input size, the declared dimensions and the size of the
// output buffer; they are checked before any pixel storage is allocated.
// Calls share no state and may run concurrently.
package imgdec
