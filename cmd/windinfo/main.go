// windinfo inspects a stored wind artifact: the grid geometry and the
// distribution of wind speeds across it.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/virtualwinds/winds/internal/providers"
	"github.com/virtualwinds/winds/internal/wind"
)

func main() {
	grib := flag.Bool("grib", false, "Input is a raw GRIB2 file instead of the stored JSON message form")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: windinfo [-grib] <artifact>\n")
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	var messages []wind.Message
	if *grib {
		messages, err = providers.MessagesFromGRIB(f)
	} else {
		messages, err = wind.DecodeMessages(f)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", path, err)
		os.Exit(1)
	}

	w, err := wind.FromMessages(messages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building wind grid: %v\n", err)
		os.Exit(1)
	}

	speeds := gridSpeeds(w)
	if len(speeds) == 0 {
		fmt.Fprintf(os.Stderr, "Error: wind grid is empty\n")
		os.Exit(1)
	}
	sort.Float64s(speeds)

	fmt.Printf("Wind Artifact Inspector\n")
	fmt.Printf("=======================\n\n")

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Messages: %d\n\n", len(messages))

	fmt.Printf("Grid:\n")
	fmt.Printf("  Origin:  %.2f° lat, %.2f° lon\n", w.Lat0, w.Lon0)
	fmt.Printf("  Spacing: %.2f° x %.2f°\n", w.DeltaLat, w.DeltaLon)
	fmt.Printf("  Nodes:   %d x %d\n\n", w.NLat, w.NLon)

	fmt.Printf("Speed distribution:\n")
	fmt.Printf("  Mean:   %6.2f m/s (%5.1f kt)\n", stat.Mean(speeds, nil), knots(stat.Mean(speeds, nil)))
	fmt.Printf("  StdDev: %6.2f m/s\n", stat.StdDev(speeds, nil))
	fmt.Printf("  Min:    %6.2f m/s (%5.1f kt)\n", speeds[0], knots(speeds[0]))
	fmt.Printf("  Median: %6.2f m/s (%5.1f kt)\n", quantile(0.5, speeds), knots(quantile(0.5, speeds)))
	fmt.Printf("  P90:    %6.2f m/s (%5.1f kt)\n", quantile(0.9, speeds), knots(quantile(0.9, speeds)))
	fmt.Printf("  P99:    %6.2f m/s (%5.1f kt)\n", quantile(0.99, speeds), knots(quantile(0.99, speeds)))
	fmt.Printf("  Max:    %6.2f m/s (%5.1f kt)\n", speeds[len(speeds)-1], knots(speeds[len(speeds)-1]))
}

// gridSpeeds flattens the wind speed over the grid, skipping the
// duplicated wrap column.
func gridSpeeds(w *wind.Wind) []float64 {
	speeds := make([]float64, 0, w.NLat*w.NLon)
	for i := 0; i < w.NLat; i++ {
		for j := 0; j < w.NLon; j++ {
			speeds = append(speeds, math.Hypot(w.U[i][j], w.V[i][j]))
		}
	}
	return speeds
}

// quantile expects speeds sorted ascending.
func quantile(p float64, speeds []float64) float64 {
	return stat.Quantile(p, stat.Empirical, speeds, nil)
}

func knots(ms float64) float64 {
	return ms * 3600.0 / 1852.0
}
