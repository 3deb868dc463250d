package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"os/exec"

	"github.com/virtualwinds/winds/internal/wind"
	"github.com/virtualwinds/winds/pkg/grib2"
)

// A Converter turns a downloaded GRIB2 artifact into the stored JSON
// message array.
type Converter interface {
	Convert(ctx context.Context, gribPath, jsonPath string) error
}

// The stored artifacts carry only 10 m above ground fields; both
// converters filter on the same surface.
const (
	windSurfaceType  = 103
	windSurfaceValue = 10
)

// BuiltinConverter decodes GRIB2 in process and writes the canonical
// message array, replacing the external subprocess end to end.
type BuiltinConverter struct{}

func (BuiltinConverter) Convert(ctx context.Context, gribPath, jsonPath string) error {
	f, err := os.Open(gribPath)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := MessagesFromGRIB(f)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(jsonPath, payload, 0o644)
}

// MessagesFromGRIB decodes a GRIB2 stream into the canonical message
// array, keeping only 10 m above ground products on a lat/lon grid.
func MessagesFromGRIB(r io.Reader) ([]wind.Message, error) {
	messages, err := grib2.Read(r)
	if err != nil {
		return nil, err
	}

	out := make([]wind.Message, 0, len(messages))
	for _, m := range messages {
		header, ok := messageHeader(m)
		if !ok {
			continue
		}
		data, err := m.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, wind.Message{Header: header, Data: data})
	}
	return out, nil
}

// messageHeader flattens the section fields consumed downstream. Only
// 10 m above ground products on a lat/lon grid qualify.
func messageHeader(m *grib2.Message) (wind.Header, bool) {
	product := m.Product.Forecast
	grid := m.Grid.LatLon
	if product == nil || grid == nil {
		return wind.Header{}, false
	}

	surface := product.FirstSurface
	value := surfaceValue(surface)
	if surface.Type != windSurfaceType || value != windSurfaceValue {
		return wind.Header{}, false
	}

	return wind.Header{
		Discipline:        int(m.Indicator.Discipline),
		ParameterCategory: int(product.ParameterCategory),
		ParameterNumber:   int(product.ParameterNumber),
		Surface1Type:      int(surface.Type),
		Surface1Value:     value,
		NX:                int(grid.Ni),
		NY:                int(grid.Nj),
		La1:               degrees(grid.La1),
		Lo1:               degrees(grid.Lo1),
		DX:                degrees(int32(grid.Di)),
		DY:                degrees(int32(grid.Dj)),
	}, true
}

// degrees converts a grid coordinate from micro-degrees.
func degrees(v int32) float64 {
	return float64(v) / 1e6
}

func surfaceValue(s grib2.Surface) float64 {
	return float64(s.ScaledValue) * math.Pow(10, -float64(s.ScaleFactor))
}

// grib2jsonCommand is the bundled external converter, a JVM tool invoked
// once per artifact.
const grib2jsonCommand = "grib2json/bin/grib2json"

// Grib2JSONConverter shells out to the external grib2json tool with the
// same surface filter the builtin converter applies.
type Grib2JSONConverter struct {
	Command string
}

// NewGrib2JSONConverter points at the given command; an empty command
// falls back to the bundled location.
func NewGrib2JSONConverter(command string) *Grib2JSONConverter {
	if command == "" {
		command = grib2jsonCommand
	}
	return &Grib2JSONConverter{Command: command}
}

func (c *Grib2JSONConverter) Convert(ctx context.Context, gribPath, jsonPath string) error {
	cmd := exec.CommandContext(ctx, c.Command,
		"--data",
		"--names",
		"--fs", "103",
		"--fv", "10",
		"--compact",
		"--output", jsonPath,
		gribPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitStatusError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return err
}
