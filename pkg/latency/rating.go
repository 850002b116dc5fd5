// ABOUTME: Latency rating bands and analysis thresholds
// ABOUTME: Single policy table grading averages and gating recommendations
package latency

// Rating grades a rolling latency average.
type Rating string

const (
	RatingExcellent    Rating = "excellent"
	RatingGood         Rating = "good"
	RatingAcceptable   Rating = "acceptable"
	RatingPoor         Rating = "poor"
	RatingUnacceptable Rating = "unacceptable"
	// RatingUnknown is reported when no samples have been recorded.
	RatingUnknown Rating = "unknown"
)

// ratingBands maps strict upper bounds in milliseconds to ratings,
// checked in order. Averages past the last band are unacceptable.
var ratingBands = []struct {
	UpperMs float64
	Rating  Rating
}{
	{5, RatingExcellent},
	{10, RatingGood},
	{20, RatingAcceptable},
	{50, RatingPoor},
}

// Rate grades an average latency in milliseconds.
func Rate(ms float64) Rating {
	for _, band := range ratingBands {
		if ms < band.UpperMs {
			return band.Rating
		}
	}
	return RatingUnacceptable
}

// analysisThresholdMs is the total-latency average above which the
// monitor emits recommendations.
const analysisThresholdMs = 20

// recommendationRules maps per-category averages to advice, checked when
// the total average crosses analysisThresholdMs.
var recommendationRules = []struct {
	Category    Category
	ThresholdMs float64
	Text        string
}{
	{CategoryBuffer, 8, "Reduce the audio buffer size or close other audio applications"},
	{CategoryAudioTrigger, 10, "Keep samples preloaded so triggers skip decode and copy work"},
	{CategoryKeyPress, 10, "Reduce input handling work between key press and trigger"},
}

// recommendationFallback is advised when the total average is poor but
// no single category stands out.
const recommendationFallback = "Close other applications competing for the audio device"

// recommendationsFor builds advice from per-category stats. Returns nil
// when the total average sits inside the acceptable band.
func recommendationsFor(stats map[Category]Stats) []string {
	total, ok := stats[CategoryTotal]
	if !ok || total.Count == 0 || total.AverageMs <= analysisThresholdMs {
		return nil
	}

	var recs []string
	for _, rule := range recommendationRules {
		s, ok := stats[rule.Category]
		if !ok || s.Count == 0 {
			continue
		}
		if s.AverageMs > rule.ThresholdMs {
			recs = append(recs, rule.Text)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, recommendationFallback)
	}
	return recs
}
