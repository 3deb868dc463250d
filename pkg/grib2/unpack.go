package grib2

import (
	"encoding/binary"
	"math"
)

// scale is the simple-packing value transform (R + v·2^B) · 10^-D
// shared by all three packing templates.
type scale struct {
	ref     float64
	binary  float64
	decimal float64
}

func newScale(p *SimplePacking) scale {
	return scale{
		ref:     float64(p.ReferenceValue),
		binary:  math.Pow(2, float64(p.BinaryScaleFactor)),
		decimal: math.Pow(10, -float64(p.DecimalScaleFactor)),
	}
}

func (s scale) apply(v float64) float64 {
	return (s.ref + v*s.binary) * s.decimal
}

// unpackSimple decodes a template 5.0 payload. With zero bits per
// value nothing is packed and every point equals the reference value.
func unpackSimple(p *SimplePacking, payload []byte, numPoints int) ([]float64, error) {
	if p.NumBits == 0 {
		out := make([]float64, numPoints)
		ref := float64(p.ReferenceValue)
		for i := range out {
			out[i] = ref
		}
		return out, nil
	}

	s := newScale(p)
	out := make([]float64, 0, numPoints)
	r := newBitReader(payload, p.NumBits)
	for {
		v, ok := r.next()
		if !ok {
			break
		}
		out = append(out, s.apply(float64(v)))
	}
	if len(out) != numPoints {
		return nil, decodeErrorf("length mismatch: %d values unpacked for %d points", len(out), numPoints)
	}
	return out, nil
}

// group is one (reference, width, length) triple of a complex-packed
// payload.
type group struct {
	ref    int64
	width  int
	length int
}

// octetLength is the byte-padded size of n packed values w bits wide.
func octetLength(w, n int) int {
	return (w*n + 7) / 8
}

// readGroups parses the three packed regions that open a
// complex-packed payload: group references, group widths and scaled
// group lengths. Each region is padded to a whole octet. Only
// NumGroups-1 lengths are packed; the last group's true length comes
// from the group definition. Returns the groups and the size of the
// three regions in octets.
func readGroups(p *ComplexPacking, payload []byte) ([]group, int, error) {
	gd := &p.Groups
	n := gd.NumGroups
	refsEnd := octetLength(p.NumBits, n)
	widthsEnd := refsEnd + octetLength(gd.WidthsNumBits, n)
	lengthsEnd := widthsEnd + octetLength(gd.ScaledLengthsNumBits, n)
	if lengthsEnd > len(payload) {
		return nil, 0, decodeErrorf("group regions need %d octets, payload has %d", lengthsEnd, len(payload))
	}

	groups := make([]group, n)

	refs := newBitReader(payload[:refsEnd], p.NumBits)
	for i := range groups {
		v, ok := refs.next()
		if !ok {
			return nil, 0, decodeErrorf("group references exhausted at %d of %d", i, n)
		}
		groups[i].ref = int64(v)
	}

	widths := newBitReader(payload[refsEnd:widthsEnd], gd.WidthsNumBits)
	for i := range groups {
		v, ok := widths.next()
		if !ok {
			return nil, 0, decodeErrorf("group widths exhausted at %d of %d", i, n)
		}
		groups[i].width = int(uint64(gd.WidthsReference) + v)
	}

	lengths := newBitReader(payload[widthsEnd:lengthsEnd], gd.ScaledLengthsNumBits)
	for i := 0; i < n-1; i++ {
		v, ok := lengths.next()
		if !ok {
			return nil, 0, decodeErrorf("group lengths exhausted at %d of %d", i, n)
		}
		groups[i].length = int(uint64(gd.LengthsReference) + uint64(gd.LengthsIncrement)*v)
	}
	if n > 0 {
		groups[n-1].length = int(gd.LengthLast)
	}

	return groups, lengthsEnd, nil
}

// readGroupValues reads each group's packed values, resuming the bit
// position where the previous group stopped, and applies the group
// reference.
func readGroupValues(payload []byte, groups []group) ([]int64, error) {
	total := 0
	for _, g := range groups {
		total += g.length
	}

	vals := make([]int64, 0, total)
	pos, offset := 0, 0
	for _, g := range groups {
		bits := g.width*g.length + offset
		end, rem := pos+bits/8, bits%8
		upper := end
		if rem > 0 {
			upper++
		}
		if upper > len(payload) {
			return nil, decodeErrorf("group values need %d octets, payload has %d", upper, len(payload)-pos)
		}
		r := newBitReaderAt(payload[pos:upper], g.width, offset)
		for i := 0; i < g.length; i++ {
			v, ok := r.next()
			if !ok {
				return nil, decodeErrorf("group values exhausted")
			}
			vals = append(vals, g.ref+asGribInt64(v))
		}
		pos, offset = end, rem
	}
	return vals, nil
}

// unpackComplex decodes a template 5.2 payload: grouped values, each
// an offset from its group reference, then the shared scaling.
func unpackComplex(p *ComplexPacking, payload []byte) ([]float64, error) {
	groups, regions, err := readGroups(p, payload)
	if err != nil {
		return nil, err
	}
	raw, err := readGroupValues(payload[regions:], groups)
	if err != nil {
		return nil, err
	}

	s := newScale(&p.SimplePacking)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = s.apply(float64(v))
	}
	return out, nil
}

// unpackSpatialDiff decodes a template 5.3 payload. The payload opens
// with the verbatim initial field value(s) and the overall minimum of
// the differences, each two octets sign-and-magnitude; the grouped
// data then packs the biased differences.
func unpackSpatialDiff(p *SpatialDiffPacking, payload []byte) ([]float64, error) {
	if p.Order != 1 && p.Order != 2 {
		return nil, decodeErrorf("spatial difference order %d not supported", p.Order)
	}
	preamble := 4
	if p.Order == 2 {
		preamble = 6
	}
	if len(payload) < preamble {
		return nil, decodeErrorf("spatial difference preamble needs %d octets, payload has %d", preamble, len(payload))
	}

	z1 := int64(asGribInt16(binary.BigEndian.Uint16(payload[0:])))
	var z2, zmin int64
	if p.Order == 2 {
		z2 = int64(asGribInt16(binary.BigEndian.Uint16(payload[2:])))
		zmin = int64(asGribInt16(binary.BigEndian.Uint16(payload[4:])))
	} else {
		zmin = int64(asGribInt16(binary.BigEndian.Uint16(payload[2:])))
	}

	groups, regions, err := readGroups(&p.ComplexPacking, payload[preamble:])
	if err != nil {
		return nil, err
	}
	raw, err := readGroupValues(payload[preamble+regions:], groups)
	if err != nil {
		return nil, err
	}

	undiff(raw, p.Order, z1, z2, zmin)

	s := newScale(&p.SimplePacking)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = s.apply(float64(v))
	}
	return out, nil
}

// undiff reverses the spatial differencing in place. The first
// order values are replaced by the verbatim initial values from the
// preamble; every following difference is unbiased by zmin and
// accumulated.
func undiff(vals []int64, order uint8, z1, z2, zmin int64) {
	switch order {
	case 1:
		if len(vals) == 0 {
			return
		}
		vals[0] = z1
		for k := 1; k < len(vals); k++ {
			vals[k] += zmin + vals[k-1]
		}
	case 2:
		if len(vals) > 0 {
			vals[0] = z1
		}
		if len(vals) > 1 {
			vals[1] = z2
		}
		for k := 2; k < len(vals); k++ {
			vals[k] += zmin + 2*vals[k-1] - vals[k-2]
		}
	}
}
