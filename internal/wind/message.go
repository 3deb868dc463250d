package wind

import (
	"encoding/json"
	"fmt"
	"io"
)

// Message is one entry of a stored artifact: a grib2json-compatible JSON
// array of header/data pairs.
type Message struct {
	Header Header    `json:"header"`
	Data   []float64 `json:"data"`
}

// Header carries the subset of GRIB metadata the wind builder consumes.
type Header struct {
	Discipline        int     `json:"discipline"`
	ParameterCategory int     `json:"parameterCategory"`
	ParameterNumber   int     `json:"parameterNumber"`
	Surface1Type      int     `json:"surface1Type"`
	Surface1Value     float64 `json:"surface1Value"`
	NX                int     `json:"nx"`
	NY                int     `json:"ny"`
	La1               float64 `json:"la1"`
	Lo1               float64 `json:"lo1"`
	DX                float64 `json:"dx"`
	DY                float64 `json:"dy"`
}

// DecodeMessages reads a stored JSON artifact.
func DecodeMessages(r io.Reader) ([]Message, error) {
	var messages []Message
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decoding artifact messages: %w", err)
	}
	return messages, nil
}
