// Package grib2 reads GRIB2, the WMO FM 92 edition 2 binary format
// for gridded meteorological fields.
//
// A GRIB2 stream is a sequence of messages. Each message is a
// sequence of sections:
//
//	0  indicator: "GRIB" magic, discipline, edition, total length
//	1  identification: originating centre and reference time
//	2  local use (skipped)
//	3  grid definition
//	4  product definition
//	5  data representation (packing parameters)
//	6  bitmap
//	7  packed data
//	8  end marker "7777"
//
// Read parses the stream; Message.Decode unpacks the grid values.
// Grid template 3.0, product template 4.0 and data representation
// templates 5.0, 5.2 and 5.3 are supported, which covers the GFS
// products this module consumes.
package grib2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	indicatorSize = 16
	headerSize    = 5
	endSize       = 4
)

var (
	magic    = []byte("GRIB")
	endMagic = []byte("7777")
)

var (
	// ErrNotGRIB means the stream does not start with the "GRIB"
	// magic number.
	ErrNotGRIB = errors.New("grib2: not a GRIB stream")

	// ErrEndSectionMismatch means the "7777" end marker was not
	// found where the message length said it would be.
	ErrEndSectionMismatch = errors.New("grib2: end section mismatch")
)

// VersionError reports a GRIB edition this package does not read.
type VersionError struct {
	Edition uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("grib2: unsupported GRIB edition %d", e.Edition)
}

// UnknownSectionError reports a section number outside the GRIB2
// layout.
type UnknownSectionError struct {
	Number uint8
}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("grib2: unknown section %d", e.Number)
}

// ParseError reports a malformed section.
type ParseError string

func (e ParseError) Error() string { return string(e) }

func parseErrorf(format string, args ...interface{}) ParseError {
	return ParseError("grib2: " + fmt.Sprintf(format, args...))
}

// DecodeError reports packed data that cannot be unpacked.
type DecodeError string

func (e DecodeError) Error() string { return string(e) }

func decodeErrorf(format string, args ...interface{}) DecodeError {
	return DecodeError("grib2: " + fmt.Sprintf(format, args...))
}

// Message is one decoded GRIB2 message. All sections except local use
// are mandatory; Read fails on messages that omit one.
type Message struct {
	Indicator          Indicator
	Identification     *Identification
	Grid               *GridDefinition
	Product            *ProductDefinition
	DataRepresentation *DataRepresentation
	Bitmap             *Bitmap

	data []byte
}

// Read parses every message of a GRIB2 stream. It stops cleanly at
// end of stream and fails on truncated or malformed input.
func Read(r io.Reader) ([]*Message, error) {
	var messages []*Message
	for {
		msg, err := readMessage(r)
		if err == io.EOF {
			return messages, nil
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
}

func readMessage(r io.Reader) (*Message, error) {
	var head [indicatorSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, parseErrorf("truncated indicator section")
		}
		return nil, err
	}
	if !bytes.Equal(head[:4], magic) {
		return nil, ErrNotGRIB
	}
	if edition := head[7]; edition != 2 {
		return nil, &VersionError{Edition: edition}
	}

	msg := &Message{
		Indicator: Indicator{
			Discipline:  head[6],
			TotalLength: binary.BigEndian.Uint64(head[8:16]),
		},
	}
	if msg.Indicator.TotalLength < indicatorSize+endSize {
		return nil, parseErrorf("message length %d shorter than a minimal message", msg.Indicator.TotalLength)
	}

	remaining := msg.Indicator.TotalLength - indicatorSize
	for remaining > 0 {
		if remaining == endSize {
			var end [endSize]byte
			if _, err := io.ReadFull(r, end[:]); err != nil {
				return nil, parseErrorf("truncated end section")
			}
			if !bytes.Equal(end[:], endMagic) {
				return nil, ErrEndSectionMismatch
			}
			break
		}
		if remaining < headerSize+endSize {
			return nil, parseErrorf("%d octets left before the end section", remaining)
		}

		var hdr [headerSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, parseErrorf("truncated section header")
		}
		size := binary.BigEndian.Uint32(hdr[:4])
		number := hdr[4]
		if uint64(size) < headerSize || uint64(size) > remaining-endSize {
			return nil, parseErrorf("section %d length %d out of range", number, size)
		}

		body := make([]byte, size-headerSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, parseErrorf("truncated section %d", number)
		}
		remaining -= uint64(size)

		if err := msg.setSection(number, body); err != nil {
			return nil, err
		}
	}

	if err := msg.complete(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *Message) setSection(number uint8, body []byte) error {
	var err error
	switch number {
	case 1:
		m.Identification, err = parseIdentification(body)
	case 2:
		// Local use section, skipped.
	case 3:
		m.Grid, err = parseGridDefinition(body)
	case 4:
		m.Product, err = parseProductDefinition(body)
	case 5:
		m.DataRepresentation, err = parseDataRepresentation(body)
	case 6:
		m.Bitmap, err = parseBitmap(body)
	case 7:
		m.data = body
	default:
		return &UnknownSectionError{Number: number}
	}
	return err
}

// complete verifies every mandatory section arrived.
func (m *Message) complete() error {
	switch {
	case m.Identification == nil:
		return decodeErrorf("missing section 1")
	case m.Grid == nil:
		return decodeErrorf("missing section 3")
	case m.Product == nil:
		return decodeErrorf("missing section 4")
	case m.DataRepresentation == nil:
		return decodeErrorf("missing section 5")
	case m.Bitmap == nil:
		return decodeErrorf("missing section 6")
	case m.data == nil:
		return decodeErrorf("missing section 7")
	}
	return nil
}

// Decode unpacks the grid values of the message according to its data
// representation template.
func (m *Message) Decode() ([]float64, error) {
	dr := m.DataRepresentation
	switch {
	case dr.Simple != nil:
		return unpackSimple(dr.Simple, m.data, dr.NumPoints)
	case dr.Complex != nil:
		return unpackComplex(dr.Complex, m.data)
	case dr.SpatialDiff != nil:
		return unpackSpatialDiff(dr.SpatialDiff, m.data)
	default:
		return nil, decodeErrorf("no decoder for data representation template %d", dr.TemplateNumber)
	}
}
