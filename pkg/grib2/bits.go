package grib2

import (
	"encoding/binary"
	"math"
)

// GRIB2 encodes signed integers as sign-and-magnitude: the most
// significant bit carries the sign, the remaining bits the magnitude.

func asGribInt16(v uint16) int16 {
	if v&0x8000 != 0 {
		return -int16(v &^ 0x8000)
	}
	return int16(v)
}

func asGribInt64(v uint64) int64 {
	if v&(1<<63) != 0 {
		return -int64(v &^ (1 << 63))
	}
	return int64(v)
}

// bitReader extracts successive width-bit unsigned integers from a
// byte slice, MSB first, straddling byte boundaries as needed.
type bitReader struct {
	buf    []byte
	width  int
	pos    int // current byte
	offset int // bits of buf[pos] already consumed, 0-7
}

func newBitReader(buf []byte, width int) *bitReader {
	return &bitReader{buf: buf, width: width}
}

// newBitReaderAt additionally skips offset bits of the first byte, so
// a read can resume where a previous one stopped mid-byte.
func newBitReaderAt(buf []byte, width, offset int) *bitReader {
	return &bitReader{buf: buf, width: width, offset: offset}
}

// next returns the following value, or false once a full width-bit
// value can no longer be extracted. A zero-width read consumes
// nothing and yields zero, so constant groups decode to their
// reference value.
func (r *bitReader) next() (uint64, bool) {
	if r.width == 0 {
		return 0, true
	}
	end := r.offset + r.width
	pos, offset := r.pos+end/8, end%8

	if r.pos >= len(r.buf) || pos > len(r.buf) || (pos == len(r.buf) && offset > 0) {
		return 0, false
	}

	v := uint64(r.buf[r.pos] << r.offset >> r.offset)
	if pos == r.pos {
		v >>= 8 - offset
	} else {
		for p := r.pos + 1; p < pos; p++ {
			v = v<<8 | uint64(r.buf[p])
		}
		if offset > 0 {
			v = v<<offset | uint64(r.buf[pos]>>(8-offset))
		}
	}

	r.pos, r.offset = pos, offset
	return v, true
}

// byteReader reads big-endian scalars sequentially from a section
// body. Reads past the end return zero and set short, checked once
// after the last field.
type byteReader struct {
	buf   []byte
	pos   int
	short bool
}

func (r *byteReader) u8() uint8 {
	if r.pos+1 > len(r.buf) {
		r.short = true
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *byteReader) u16() uint16 {
	if r.pos+2 > len(r.buf) {
		r.short = true
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *byteReader) u32() uint32 {
	if r.pos+4 > len(r.buf) {
		r.short = true
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *byteReader) f32() float32 {
	return math.Float32frombits(r.u32())
}
