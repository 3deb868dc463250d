package grib2

import (
	"time"
)

// Indicator is the GRIB2 indicator section (section 0): 16 octets
// holding the "GRIB" magic, the data discipline, the edition number
// and the total message length.
type Indicator struct {
	// Discipline of the processed data (code table 0.0).
	Discipline uint8
	// TotalLength of the message in octets, all sections included.
	TotalLength uint64
}

// Identification is section 1: originating centre, table versions and
// the reference time of the data.
type Identification struct {
	CentreID            uint16
	SubCentreID         uint16
	MasterTableVersion  uint8
	LocalTableVersion   uint8
	RefTimeSignificance uint8
	RefTime             time.Time
	ProductionStatus    uint8
	DataType            uint8
}

// parseIdentification reads the fixed leading fields of the section 1
// body (octets 6-21 of the section); anything beyond is reserved and
// ignored.
func parseIdentification(body []byte) (*Identification, error) {
	r := &byteReader{buf: body}
	id := &Identification{
		CentreID:            r.u16(),
		SubCentreID:         r.u16(),
		MasterTableVersion:  r.u8(),
		LocalTableVersion:   r.u8(),
		RefTimeSignificance: r.u8(),
	}
	year := r.u16()
	month, day := r.u8(), r.u8()
	hour, minute, second := r.u8(), r.u8(), r.u8()
	id.ProductionStatus = r.u8()
	id.DataType = r.u8()
	if r.short {
		return nil, parseErrorf("identification section too short: %d octets", len(body))
	}
	id.RefTime = time.Date(int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second), 0, time.UTC)
	return id, nil
}

// GridDefinition is section 3. Only template 3.0 (latitude/longitude)
// is interpreted; other templates are retained raw.
type GridDefinition struct {
	Source         uint8
	NumPoints      int
	TemplateNumber uint16
	// LatLon is set when TemplateNumber is 0.
	LatLon *LatLonGrid
	raw    []byte
}

// ScaledValue is a (scale factor, scaled value) pair as used for earth
// axis lengths.
type ScaledValue struct {
	Scale uint8
	Value uint32
}

// LatLonGrid is grid definition template 3.0: latitude/longitude,
// also called equidistant cylindrical or Plate Carree.
//
// Latitudes, longitudes and increments are in micro-degrees.
type LatLonGrid struct {
	EarthShape      uint8
	SphericalRadius ScaledValue
	MajorAxis       ScaledValue
	MinorAxis       ScaledValue
	Ni, Nj          uint32
	BasicAngle      uint32
	BasicAngleSub   uint32
	La1, Lo1        int32
	ResolutionFlags uint8
	La2, Lo2        int32
	Di, Dj          uint32
	ScanningMode    uint8
}

func parseGridDefinition(body []byte) (*GridDefinition, error) {
	r := &byteReader{buf: body}
	gd := &GridDefinition{Source: r.u8()}
	gd.NumPoints = int(r.u32())
	optSize := int(r.u8())
	r.u8() // interpretation of the optional list
	gd.TemplateNumber = r.u16()
	if r.short || len(body)-optSize < r.pos {
		return nil, parseErrorf("grid definition section too short: %d octets", len(body))
	}
	tmpl := body[r.pos : len(body)-optSize]

	if gd.TemplateNumber != 0 {
		gd.raw = tmpl
		return gd, nil
	}

	t := &byteReader{buf: tmpl}
	g := &LatLonGrid{
		EarthShape:      t.u8(),
		SphericalRadius: ScaledValue{t.u8(), t.u32()},
		MajorAxis:       ScaledValue{t.u8(), t.u32()},
		MinorAxis:       ScaledValue{t.u8(), t.u32()},
		Ni:              t.u32(),
		Nj:              t.u32(),
		BasicAngle:      t.u32(),
		BasicAngleSub:   t.u32(),
		La1:             int32(t.u32()),
		Lo1:             int32(t.u32()),
		ResolutionFlags: t.u8(),
		La2:             int32(t.u32()),
		Lo2:             int32(t.u32()),
		Di:              t.u32(),
		Dj:              t.u32(),
		ScanningMode:    t.u8(),
	}
	if t.short {
		return nil, parseErrorf("lat/lon grid template too short: %d octets", len(tmpl))
	}
	gd.LatLon = g
	return gd, nil
}

// ProductDefinition is section 4. Only template 4.0 (analysis or
// forecast at a horizontal level, at a point in time) is interpreted.
type ProductDefinition struct {
	NumCoordinates int
	TemplateNumber uint16
	// Forecast is set when TemplateNumber is 0.
	Forecast *ForecastProduct
	// Coordinates holds the optional trailing coordinate values.
	Coordinates []byte
	raw         []byte
}

// Surface describes a fixed surface: type from code table 4.5 plus a
// scaled value.
type Surface struct {
	Type        uint8
	ScaleFactor uint8
	ScaledValue uint32
}

// ForecastProduct is product definition template 4.0.
type ForecastProduct struct {
	ParameterCategory uint8
	ParameterNumber   uint8
	ProcessType       uint8
	BackgroundProcess uint8
	AnalysisProcess   uint8
	CutoffHours       uint16
	CutoffMinutes     uint8
	ForecastTime      time.Duration
	FirstSurface      Surface
	SecondSurface     Surface
}

const day = 24 * time.Hour

func parseProductDefinition(body []byte) (*ProductDefinition, error) {
	r := &byteReader{buf: body}
	pd := &ProductDefinition{NumCoordinates: int(r.u16())}
	pd.TemplateNumber = r.u16()
	coordsLen := 4 * pd.NumCoordinates
	if r.short || len(body)-coordsLen < r.pos {
		return nil, parseErrorf("product definition section too short: %d octets", len(body))
	}
	tmpl := body[r.pos : len(body)-coordsLen]
	if coordsLen > 0 {
		pd.Coordinates = body[len(body)-coordsLen:]
	}

	if pd.TemplateNumber != 0 {
		pd.raw = tmpl
		return pd, nil
	}

	t := &byteReader{buf: tmpl}
	p := &ForecastProduct{
		ParameterCategory: t.u8(),
		ParameterNumber:   t.u8(),
		ProcessType:       t.u8(),
		BackgroundProcess: t.u8(),
		AnalysisProcess:   t.u8(),
		CutoffHours:       t.u16(),
		CutoffMinutes:     t.u8(),
	}
	unit := t.u8()
	value := time.Duration(t.u32())
	p.FirstSurface = Surface{t.u8(), t.u8(), t.u32()}
	p.SecondSurface = Surface{t.u8(), t.u8(), t.u32()}
	if t.short {
		return nil, parseErrorf("forecast product template too short: %d octets", len(tmpl))
	}

	// Code table 4.4, indicator of unit of time range.
	switch unit {
	case 0:
		p.ForecastTime = value * time.Minute
	case 1:
		p.ForecastTime = value * time.Hour
	case 2:
		p.ForecastTime = value * day
	case 3:
		p.ForecastTime = value * 30 * day
	case 4:
		p.ForecastTime = value * 365 * day
	case 5:
		p.ForecastTime = value * 10 * 365 * day
	case 6:
		p.ForecastTime = value * 30 * 365 * day
	case 7:
		p.ForecastTime = value * 100 * 365 * day
	case 10:
		p.ForecastTime = value * 3 * time.Hour
	case 11:
		p.ForecastTime = value * 6 * time.Hour
	case 12:
		p.ForecastTime = value * 12 * time.Hour
	case 13:
		p.ForecastTime = value * time.Second
	default:
		return nil, parseErrorf("forecast time unit %d does not exist", unit)
	}

	pd.Forecast = p
	return pd, nil
}

// DataRepresentation is section 5: how the section 7 payload is
// packed. Templates 5.0, 5.2 and 5.3 are interpreted; others are
// retained raw.
type DataRepresentation struct {
	NumPoints      int
	TemplateNumber uint16

	Simple      *SimplePacking
	Complex     *ComplexPacking
	SpatialDiff *SpatialDiffPacking
	raw         []byte
}

// SimplePacking is data representation template 5.0: each value is an
// unsigned NumBits-wide offset from ReferenceValue, scaled by the
// binary and decimal scale factors.
type SimplePacking struct {
	ReferenceValue     float32
	BinaryScaleFactor  int16
	DecimalScaleFactor int16
	NumBits            int
	ValuesType         uint8
}

// GroupDefinition describes the group splitting of a complex-packed
// payload (templates 5.2 and 5.3).
type GroupDefinition struct {
	NumGroups            int
	WidthsReference      uint8
	WidthsNumBits        int
	LengthsReference     uint32
	LengthsIncrement     uint8
	LengthLast           uint32
	ScaledLengthsNumBits int
}

// ComplexPacking is data representation template 5.2: values are
// split into groups, each with its own reference and width.
type ComplexPacking struct {
	SimplePacking
	GroupMethod                uint8
	MissingValueManagement     uint8
	PrimaryMissingSubstitute   uint32
	SecondaryMissingSubstitute uint32
	Groups                     GroupDefinition
}

// SpatialDiffPacking is data representation template 5.3: complex
// packing applied to spatial differences of the field.
type SpatialDiffPacking struct {
	ComplexPacking
	// Order of spatial differencing, 1 or 2 (code table 5.6).
	Order uint8
	// ExtraOctets used per extra-descriptor value in the payload
	// preamble.
	ExtraOctets uint8
}

func parseDataRepresentation(body []byte) (*DataRepresentation, error) {
	r := &byteReader{buf: body}
	dr := &DataRepresentation{NumPoints: int(r.u32())}
	dr.TemplateNumber = r.u16()
	if r.short {
		return nil, parseErrorf("data representation section too short: %d octets", len(body))
	}
	tmpl := body[r.pos:]
	t := &byteReader{buf: tmpl}

	readSimple := func() SimplePacking {
		return SimplePacking{
			ReferenceValue:     t.f32(),
			BinaryScaleFactor:  asGribInt16(t.u16()),
			DecimalScaleFactor: asGribInt16(t.u16()),
			NumBits:            int(t.u8()),
			ValuesType:         t.u8(),
		}
	}
	readComplex := func() ComplexPacking {
		c := ComplexPacking{
			SimplePacking:              readSimple(),
			GroupMethod:                t.u8(),
			MissingValueManagement:     t.u8(),
			PrimaryMissingSubstitute:   t.u32(),
			SecondaryMissingSubstitute: t.u32(),
		}
		c.Groups = GroupDefinition{
			NumGroups:            int(t.u32()),
			WidthsReference:      t.u8(),
			WidthsNumBits:        int(t.u8()),
			LengthsReference:     t.u32(),
			LengthsIncrement:     t.u8(),
			LengthLast:           t.u32(),
			ScaledLengthsNumBits: int(t.u8()),
		}
		return c
	}

	switch dr.TemplateNumber {
	case 0:
		p := readSimple()
		if t.short {
			return nil, parseErrorf("simple packing template too short: %d octets", len(tmpl))
		}
		dr.Simple = &p
	case 2:
		p := readComplex()
		if t.short {
			return nil, parseErrorf("complex packing template too short: %d octets", len(tmpl))
		}
		dr.Complex = &p
	case 3:
		p := SpatialDiffPacking{ComplexPacking: readComplex()}
		p.Order = t.u8()
		p.ExtraOctets = t.u8()
		if t.short {
			return nil, parseErrorf("spatial difference template too short: %d octets", len(tmpl))
		}
		dr.SpatialDiff = &p
	default:
		dr.raw = tmpl
	}
	return dr, nil
}

// Bitmap is section 6. Indicator 255 means no bitmap applies.
type Bitmap struct {
	Indicator uint8
	Data      []byte
}

func parseBitmap(body []byte) (*Bitmap, error) {
	if len(body) < 1 {
		return nil, parseErrorf("bitmap section too short: %d octets", len(body))
	}
	return &Bitmap{Indicator: body[0], Data: body[1:]}, nil
}
