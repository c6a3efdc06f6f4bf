package scoring_test

import (
	"encoding/json"
	"testing"

	"slidecast/internal/domain"
	"slidecast/internal/scoring"
)

func TestMultipleChoiceScoring(t *testing.T) {
	slide := domain.Slide{
		Type:           domain.SlideMultipleChoice,
		TimeLimit:      30,
		Points:         1000,
		MultipleChoice: &domain.MultipleChoiceSlide{Options: []string{"a", "b", "c"}, Correct: 1},
	}

	// Instant correct answer keeps the full bonus.
	res := scoring.Score(slide, answer(t, 1, 0))
	if res.Points != 1000 || !res.Correct {
		t.Fatalf("expected 1000 points, got %+v", res)
	}

	// Answer at the wire halves the points.
	res = scoring.Score(slide, answer(t, 1, 30000))
	if res.Points != 500 {
		t.Fatalf("expected 500 points at the deadline, got %d", res.Points)
	}

	// Wrong option is always zero, regardless of speed.
	res = scoring.Score(slide, answer(t, 2, 0))
	if res.Points != 0 || res.Correct {
		t.Fatalf("expected 0 points for wrong option, got %+v", res)
	}
}

func TestTrueFalseScoring(t *testing.T) {
	slide := domain.Slide{
		Type:      domain.SlideTrueFalse,
		TimeLimit: 20,
		TrueFalse: &domain.TrueFalseSlide{Answer: true},
	}

	res := scoring.Score(slide, answer(t, true, 0))
	if res.Points != domain.DefaultMaxPoints {
		t.Fatalf("expected default max points, got %d", res.Points)
	}

	res = scoring.Score(slide, answer(t, false, 0))
	if res.Points != 0 {
		t.Fatalf("expected 0 for wrong boolean, got %d", res.Points)
	}
}

func TestEstimationScoring(t *testing.T) {
	slide := domain.Slide{
		Type:       domain.SlideEstimation,
		Points:     1000,
		TimeLimit:  30,
		Estimation: &domain.EstimationSlide{Answer: 100, HalfLife: 50, Tolerance: 50},
	}

	cases := []struct {
		guess float64
		want  int
	}{
		{100, 1000}, // exact
		{150, 0},    // diff at tolerance
		{50, 0},     // diff at tolerance, below
		{125, 707},  // diff 25 -> 1000 * 2^-0.5
	}
	for _, tc := range cases {
		res := scoring.Score(slide, answer(t, tc.guess, 0))
		if res.Points != tc.want {
			t.Fatalf("guess %v: expected %d points, got %d", tc.guess, tc.want, res.Points)
		}
	}
}

func TestEstimationDecayMonotonic(t *testing.T) {
	slide := domain.Slide{
		Type:       domain.SlideEstimation,
		Points:     1000,
		Estimation: &domain.EstimationSlide{Answer: 1000, HalfLife: 100, Tolerance: 500},
	}

	prev := scoring.Score(slide, answer(t, 1000.0, 0)).Points
	for diff := 10.0; diff <= 500; diff += 10 {
		points := scoring.Score(slide, answer(t, 1000+diff, 0)).Points
		if points > prev {
			t.Fatalf("decay not monotonic: diff %v scored %d after %d", diff, points, prev)
		}
		prev = points
	}
}

func TestEstimationNoTimeBonus(t *testing.T) {
	slide := domain.Slide{
		Type:       domain.SlideEstimation,
		Points:     1000,
		TimeLimit:  30,
		Estimation: &domain.EstimationSlide{Answer: 100, HalfLife: 50, Tolerance: 50},
	}

	// Exact guess at the deadline still earns full points.
	res := scoring.Score(slide, answer(t, 100.0, 30000))
	if res.Points != 1000 {
		t.Fatalf("expected estimation to skip the time bonus, got %d", res.Points)
	}
}

func TestMapScoring(t *testing.T) {
	target := domain.LatLng{Lat: 52.52, Lng: 13.405}
	slide := domain.Slide{
		Type:      domain.SlideMap,
		Points:    1000,
		TimeLimit: 30,
		MapGuess:  &domain.MapSlide{Answer: target},
	}

	// Bullseye.
	res := scoring.Score(slide, answer(t, target, 30000))
	if res.Points != 1000 {
		t.Fatalf("expected full points for exact coordinate, got %+v", res)
	}
	if res.Distance == nil || *res.Distance != 0 {
		t.Fatalf("expected distance 0, got %v", res.Distance)
	}

	// Antipode is far beyond the default radius.
	res = scoring.Score(slide, answer(t, domain.LatLng{Lat: -52.52, Lng: -166.595}, 0))
	if res.Points != 0 {
		t.Fatalf("expected 0 points beyond max radius, got %d", res.Points)
	}

	// A coordinate with missing fields scores zero instead of erroring.
	res = scoring.Score(slide, answer(t, map[string]float64{"lat": 10}, 0))
	if res.Points != 0 || res.Distance != nil {
		t.Fatalf("expected zero-scored malformed coordinate, got %+v", res)
	}
}

func TestMapScoringTightRadius(t *testing.T) {
	slide := domain.Slide{
		Type:     domain.SlideMap,
		Points:   1000,
		MapGuess: &domain.MapSlide{Answer: domain.LatLng{Lat: 0, Lng: 0}, MaxRadius: 100},
	}

	// ~111 km north of the target, past the configured radius.
	res := scoring.Score(slide, answer(t, domain.LatLng{Lat: 1, Lng: 0}, 0))
	if res.Points != 0 {
		t.Fatalf("expected 0 points outside 100 km radius, got %d", res.Points)
	}
}

func TestSortScoring(t *testing.T) {
	slide := domain.Slide{
		Type:      domain.SlideSort,
		Points:    1000,
		TimeLimit: 30,
		Sort: &domain.SortSlide{
			Items:        []string{"a", "b", "c", "d"},
			CorrectOrder: []string{"a", "b", "c", "d"},
		},
	}

	// Fully correct order, instant submission.
	res := scoring.Score(slide, answer(t, []string{"a", "b", "c", "d"}, 0))
	if res.Points != 1000 {
		t.Fatalf("expected full points, got %d", res.Points)
	}

	// No position matches.
	res = scoring.Score(slide, answer(t, []string{"d", "c", "b", "a"}, 0))
	if res.Points != 0 {
		t.Fatalf("expected 0 for fully disjoint order, got %d", res.Points)
	}

	// Two of four positions: half the points.
	res = scoring.Score(slide, answer(t, []string{"a", "b", "d", "c"}, 0))
	if res.Points != 500 {
		t.Fatalf("expected 500 for two matches, got %d", res.Points)
	}
}

func TestSortScoringMonotonicInMatches(t *testing.T) {
	correct := []string{"a", "b", "c", "d", "e"}
	slide := domain.Slide{
		Type:   domain.SlideSort,
		Points: 1000,
		Sort:   &domain.SortSlide{Items: correct, CorrectOrder: correct},
	}

	prev := -1
	orders := [][]string{
		{"e", "d", "x", "b", "a"}, // 0 matches
		{"a", "d", "x", "b", "c"}, // 1 match
		{"a", "b", "x", "d", "c"},
		{"a", "b", "c", "e", "d"},
		{"a", "b", "c", "d", "x"},
		{"a", "b", "c", "d", "e"},
	}
	for i, order := range orders {
		points := scoring.Score(slide, answer(t, order, 0)).Points
		if points < prev {
			t.Fatalf("order %d scored %d, below previous %d", i, points, prev)
		}
		prev = points
	}
}

func TestMissingAnswerScoresZero(t *testing.T) {
	slide := domain.Slide{
		Type:           domain.SlideMultipleChoice,
		Points:         1000,
		MultipleChoice: &domain.MultipleChoiceSlide{Correct: 0},
	}

	for _, raw := range []json.RawMessage{nil, json.RawMessage("null"), json.RawMessage(`"garbage"`)} {
		res := scoring.Score(slide, domain.Answer{Value: raw})
		if res.Points != 0 || res.Correct {
			t.Fatalf("raw %q: expected zero result, got %+v", raw, res)
		}
	}
}

func TestInfoSlidesNeverScore(t *testing.T) {
	slide := domain.Slide{Type: domain.SlideInfo, Points: 1000}
	if res := scoring.Score(slide, answer(t, 1, 0)); res.Points != 0 {
		t.Fatalf("expected info slide to score zero, got %+v", res)
	}
}

func TestTimeBonusRange(t *testing.T) {
	cases := []struct {
		elapsedMS int64
		limit     int
		want      float64
	}{
		{0, 30, 1.0},
		{15000, 30, 0.75},
		{30000, 30, 0.5},
		{45000, 30, 0.5}, // clamp: late settles never dip below half
		{5000, 0, 1.0},   // untimed question has no bonus
	}
	for _, tc := range cases {
		got := scoring.TimeBonus(tc.elapsedMS, tc.limit)
		if got != tc.want {
			t.Fatalf("TimeBonus(%d, %d) = %v, want %v", tc.elapsedMS, tc.limit, got, tc.want)
		}
	}
}

func answer(t *testing.T, value any, elapsedMS int64) domain.Answer {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal answer %v: %v", value, err)
	}
	return domain.Answer{Value: raw, ElapsedMS: elapsedMS}
}
