// Package severity maps a whole-document similarity score and segment
// coverage onto a discrete severity level and recommended reviewer action.
package severity

import (
	"errors"
	"fmt"

	"github.com/hupe1980/textmatch/model"
)

// criticalSegmentScore is the local segment score above which a match is
// escalated to critical regardless of its whole-document score.
const criticalSegmentScore = 0.9

// Thresholds holds the severity boundaries. All values are similarity
// scores in [0, 1] and must be strictly ascending.
type Thresholds struct {
	Low      float64
	Moderate float64
	High     float64
	Critical float64
}

// DefaultThresholds returns the default severity boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:      0.15,
		Moderate: 0.30,
		High:     0.50,
		Critical: 0.75,
	}
}

// Validate checks the thresholds for consistency. It is called once at
// engine construction so classification can never fail at check time.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"low":      t.Low,
		"moderate": t.Moderate,
		"high":     t.High,
		"critical": t.Critical,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s threshold %v outside [0, 1]", name, v)
		}
	}

	if !(t.Low < t.Moderate && t.Moderate < t.High && t.High < t.Critical) {
		return errors.New("thresholds must be strictly ascending: low < moderate < high < critical")
	}

	return nil
}

// Classify is a pure function of the whole-document score, the number of
// localized segments and the highest local segment score.
//
// A score exactly at a boundary belongs to the higher class: a pair
// scoring exactly Low is low, never none. A single near-verbatim segment
// (score >= 0.9) escalates to critical even when the whole-document score
// is lower.
func (t Thresholds) Classify(score float64, segmentCount int, maxSegmentScore float64) model.Severity {
	if segmentCount >= 1 && maxSegmentScore >= criticalSegmentScore {
		return model.SeverityCritical
	}

	switch {
	case score >= t.Critical:
		return model.SeverityCritical
	case score >= t.High:
		return model.SeverityHigh
	case score >= t.Moderate:
		return model.SeverityModerate
	case score >= t.Low:
		return model.SeverityLow
	default:
		return model.SeverityNone
	}
}
