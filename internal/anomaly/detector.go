package anomaly

import (
	"fmt"
)

// Detector flags per-fill-up efficiency values that stray too far from the recent average
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectAnomaly checks if the efficiency is anomalous based on the preceding efficiencies
func (d *Detector) DetectAnomaly(efficiency float64, historical []float64) (bool, string) {
	if efficiency < 0 {
		return true, "negative efficiency"
	}

	if len(historical) < d.minDataPointsForDetection {
		return false, ""
	}

	sum := 0.0
	for _, v := range historical {
		sum += v
	}
	average := sum / float64(len(historical))

	if average <= 0 || d.spikeThreshold <= 1 {
		return false, ""
	}

	// A spike usually means a missed fill-up, a drop a partial one.
	if efficiency > d.spikeThreshold*average {
		return true, fmt.Sprintf("sudden efficiency spike: %.2f exceeds %.1fx rolling average %.2f",
			efficiency, d.spikeThreshold, average)
	}
	if efficiency*d.spikeThreshold < average {
		return true, fmt.Sprintf("sudden efficiency drop: %.2f below 1/%.1f of rolling average %.2f",
			efficiency, d.spikeThreshold, average)
	}

	return false, ""
}

// Annotate runs DetectAnomaly over a per-entry efficiency series, each value
// judged against up to window preceding values.
func (d *Detector) Annotate(efficiencies []float64, window int) []Finding {
	findings := make([]Finding, len(efficiencies))
	for i, value := range efficiencies {
		start := 0
		if window > 0 && i > window {
			start = i - window
		}
		isAnomaly, reason := d.DetectAnomaly(value, efficiencies[start:i])
		findings[i] = Finding{Anomalous: isAnomaly, Reason: reason}
	}
	return findings
}

// Finding is the verdict for one efficiency value
type Finding struct {
	Anomalous bool   `json:"anomalous"`
	Reason    string `json:"reason,omitempty"`
}
