package predict

// ConfidenceLevels maps probability percentages to discrete labels. The
// thresholds are configuration, not fixed business logic.
type ConfidenceLevels struct {
	VeryHigh float64 `yaml:"very_high"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
	Low      float64 `yaml:"low"`
}

// DefaultConfidenceLevels returns the stock 80/60/40/20 tiers.
func DefaultConfidenceLevels() ConfidenceLevels {
	return ConfidenceLevels{VeryHigh: 80, High: 60, Medium: 40, Low: 20}
}

// Label buckets a probability percentage. Thresholds are inclusive lower
// bounds, so 80.0 is already "very high" and 19.99 is still "very low".
func (c ConfidenceLevels) Label(percent float64) string {
	switch {
	case percent >= c.VeryHigh:
		return "very high"
	case percent >= c.High:
		return "high"
	case percent >= c.Medium:
		return "medium"
	case percent >= c.Low:
		return "low"
	default:
		return "very low"
	}
}
