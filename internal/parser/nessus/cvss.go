package nessus

import (
	"strconv"
	"strings"

	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"
)

// baseScore returns the reported score, or the score computed from the
// vector when the report carries none.
func baseScore(reported, vector string) float64 {
	if s, err := strconv.ParseFloat(strings.TrimSpace(reported), 64); err == nil {
		return s
	}
	return scoreFromVector(vector)
}

// scoreFromVector computes a CVSS base score. Nessus prefixes v2 vectors with
// "CVSS2#"; v3 and v4 vectors carry their "CVSS:x.y/" prefix.
func scoreFromVector(vector string) float64 {
	vector = strings.TrimSpace(vector)
	switch {
	case vector == "":
		return 0
	case strings.HasPrefix(vector, "CVSS:3.1"):
		if v, err := gocvss31.ParseVector(vector); err == nil {
			return v.BaseScore()
		}
	case strings.HasPrefix(vector, "CVSS:3.0"):
		if v, err := gocvss30.ParseVector(vector); err == nil {
			return v.BaseScore()
		}
	case strings.HasPrefix(vector, "CVSS:4.0"):
		if v, err := gocvss40.ParseVector(vector); err == nil {
			return v.Score()
		}
	default:
		if v, err := gocvss20.ParseVector(strings.TrimPrefix(vector, "CVSS2#")); err == nil {
			return v.BaseScore()
		}
	}
	return 0
}
