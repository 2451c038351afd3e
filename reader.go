package imgdec

// cursor reads fields out of an in-memory encoded image. Every read that
// would run past the end returns errShort, which surfaces as TruncatedData.
type cursor struct {
	b   []byte
	off int
}

func (c *cursor) remaining() int { return len(c.b) - c.off }

func (c *cursor) eof() bool { return c.off >= len(c.b) }

func (c *cursor) next(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		c.off = len(c.b)
		return nil, errShort
	}
	p := c.b[c.off : c.off+n : c.off+n]
	c.off += n
	return p, nil
}

func (c *cursor) skip(n int) error {
	_, err := c.next(n)
	return err
}

func (c *cursor) u8() (byte, error) {
	if c.off >= len(c.b) {
		return 0, errShort
	}
	v := c.b[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u16be() (uint16, error) {
	p, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return uint16(p[0])<<8 | uint16(p[1]), nil
}

func (c *cursor) u32be() (uint32, error) {
	p, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3]), nil
}

func (c *cursor) u16le() (uint16, error) {
	p, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return readUint16(p), nil
}

func (c *cursor) u32le() (uint32, error) {
	p, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return readUint32(p), nil
}

func readUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readUint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
