// Package scoring maps (slide, submitted answer) to points. All functions are
// pure; the session applies the results during settlement.
package scoring

import (
	"bytes"
	"encoding/json"
	"math"

	"slidecast/internal/domain"
	"slidecast/internal/geo"
)

const (
	// mapHalvingKM halves map points per this many kilometers of error.
	mapHalvingKM = 1000
	// defaultMaxRadiusKM zeroes map points at or beyond this distance.
	defaultMaxRadiusKM = 15000
	// defaultHalfLife halves estimation points per this many units of error.
	defaultHalfLife = 50
)

// Result is the settled outcome of one submission.
type Result struct {
	Points  int             `json:"points"`
	Correct bool            `json:"correct"`
	Answer  json.RawMessage `json:"answer"`
	// Distance (km, map) and Diff (units, estimation) give players feedback
	// on how far off they were.
	Distance *float64 `json:"distance,omitempty"`
	Diff     *float64 `json:"diff,omitempty"`
}

// Score settles one answer against a slide. A nil, empty or malformed value
// yields zero points rather than an error; a stuck player is worse than a
// zero-scored one. The time bonus applies to multiple-choice, true-false and
// sort only.
func Score(slide domain.Slide, ans domain.Answer) Result {
	res := Result{Answer: ans.Value}
	if !slide.IsQuestion() || isMissing(ans.Value) {
		return res
	}

	base := 0
	switch slide.Type {
	case domain.SlideMultipleChoice:
		base = scoreMultipleChoice(slide, ans.Value)
	case domain.SlideTrueFalse:
		base = scoreTrueFalse(slide, ans.Value)
	case domain.SlideEstimation:
		var diff float64
		base, diff = scoreEstimation(slide, ans.Value)
		if base > 0 || decodesAsNumber(ans.Value) {
			res.Diff = &diff
		}
	case domain.SlideMap:
		var dist float64
		base, dist = scoreMap(slide, ans.Value)
		if base > 0 || decodesAsLatLng(ans.Value) {
			rounded := math.Round(dist)
			res.Distance = &rounded
		}
	case domain.SlideSort:
		base = scoreSort(slide, ans.Value)
	}

	res.Correct = base > 0
	res.Points = int(math.Round(float64(base) * timeBonusFor(slide, ans)))
	return res
}

// TimeBonus returns the multiplier in [0.5, 1.0] for answering after
// elapsedMS of a limitSeconds countdown. A zero limit disables the bonus.
func TimeBonus(elapsedMS int64, limitSeconds int) float64 {
	if limitSeconds <= 0 {
		return 1
	}
	ratio := 1 - float64(elapsedMS)/float64(limitSeconds*1000)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return 0.5 + 0.5*ratio
}

func timeBonusFor(slide domain.Slide, ans domain.Answer) float64 {
	// Accuracy-graded variants reward precision, not speed.
	if slide.Type == domain.SlideMap || slide.Type == domain.SlideEstimation {
		return 1
	}
	return TimeBonus(ans.ElapsedMS, slide.TimeLimit)
}

func scoreMultipleChoice(slide domain.Slide, value json.RawMessage) int {
	if slide.MultipleChoice == nil {
		return 0
	}
	var idx int
	if err := json.Unmarshal(value, &idx); err != nil {
		return 0
	}
	if idx == slide.MultipleChoice.Correct {
		return slide.MaxPoints()
	}
	return 0
}

func scoreTrueFalse(slide domain.Slide, value json.RawMessage) int {
	if slide.TrueFalse == nil {
		return 0
	}
	var b bool
	if err := json.Unmarshal(value, &b); err != nil {
		return 0
	}
	if b == slide.TrueFalse.Answer {
		return slide.MaxPoints()
	}
	return 0
}

func scoreEstimation(slide domain.Slide, value json.RawMessage) (int, float64) {
	if slide.Estimation == nil {
		return 0, 0
	}
	var guess float64
	if err := json.Unmarshal(value, &guess); err != nil {
		return 0, 0
	}

	est := slide.Estimation
	diff := math.Abs(guess - est.Answer)
	if diff == 0 {
		return slide.MaxPoints(), 0
	}

	tolerance := est.Tolerance
	if tolerance == 0 {
		tolerance = math.Abs(est.Answer) * 0.5
	}
	if diff >= tolerance {
		return 0, diff
	}

	halfLife := est.HalfLife
	if halfLife == 0 {
		halfLife = defaultHalfLife
	}
	points := int(math.Round(float64(slide.MaxPoints()) * math.Pow(2, -diff/halfLife)))
	return points, diff
}

func scoreMap(slide domain.Slide, value json.RawMessage) (int, float64) {
	if slide.MapGuess == nil {
		return 0, 0
	}
	guess, ok := decodeLatLng(value)
	if !ok {
		return 0, 0
	}

	dist := geo.Haversine(guess, slide.MapGuess.Answer)
	maxRadius := slide.MapGuess.MaxRadius
	if maxRadius == 0 {
		maxRadius = defaultMaxRadiusKM
	}
	if dist >= maxRadius {
		return 0, dist
	}

	points := int(math.Round(float64(slide.MaxPoints()) * math.Pow(2, -dist/mapHalvingKM)))
	if points < 0 {
		points = 0
	}
	return points, dist
}

func scoreSort(slide domain.Slide, value json.RawMessage) int {
	if slide.Sort == nil || len(slide.Sort.CorrectOrder) == 0 {
		return 0
	}
	var order []string
	if err := json.Unmarshal(value, &order); err != nil {
		return 0
	}

	correct := slide.Sort.CorrectOrder
	matches := 0
	for i, item := range order {
		if i < len(correct) && item == correct[i] {
			matches++
		}
	}
	return int(math.Round(float64(slide.MaxPoints()) * float64(matches) / float64(len(correct))))
}

func isMissing(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodesAsNumber(value json.RawMessage) bool {
	var f float64
	return json.Unmarshal(value, &f) == nil
}

func decodesAsLatLng(value json.RawMessage) bool {
	_, ok := decodeLatLng(value)
	return ok
}

func decodeLatLng(value json.RawMessage) (domain.LatLng, bool) {
	var raw struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(value, &raw); err != nil || raw.Lat == nil || raw.Lng == nil {
		return domain.LatLng{}, false
	}
	return domain.LatLng{Lat: *raw.Lat, Lng: *raw.Lng}, true
}
