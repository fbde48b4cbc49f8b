package main

import (
	"strconv"

	"github.com/tidwall/geodesic"
)

// distance returns the WGS-84 geodesic distance in metres between two points.
func distance(a, b Location) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	return s12
}

// roundTo rounds v to the given number of decimal places. Exact ties go to
// the even digit and values just below a tie round down.
func roundTo(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
