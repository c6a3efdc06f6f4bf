package domain

import (
	"encoding/json"
	"math/rand"
)

// SlideType discriminates the slide union.
type SlideType string

const (
	SlideTitle          SlideType = "title"
	SlideInfo           SlideType = "info"
	SlideMultipleChoice SlideType = "multiple-choice"
	SlideTrueFalse      SlideType = "true-false"
	SlideEstimation     SlideType = "estimation"
	SlideMap            SlideType = "map"
	SlideSort           SlideType = "sort"
	SlideVideo          SlideType = "video"
)

// DefaultMaxPoints is awarded for a perfect answer unless the slide overrides it.
const DefaultMaxPoints = 1000

// Slide is one unit of session content. Exactly one of the variant pointers is
// set, matching Type. Solution fields live only inside the variant payloads, so
// a PlayerSlide built via PlayerView can never leak them.
type Slide struct {
	ID        string
	Type      SlideType
	Title     string
	Question  string
	Image     string
	TimeLimit int // seconds; 0 means untimed
	Points    int // 0 means DefaultMaxPoints

	MultipleChoice *MultipleChoiceSlide
	TrueFalse      *TrueFalseSlide
	Estimation     *EstimationSlide
	MapGuess       *MapSlide
	Sort           *SortSlide
	Video          *VideoSlide
}

// MultipleChoiceSlide holds the option list and the correct option index.
type MultipleChoiceSlide struct {
	Options []string
	Correct int
}

// TrueFalseSlide holds the expected boolean.
type TrueFalseSlide struct {
	Answer bool
}

// EstimationSlide holds the numeric answer and decay parameters. Tolerance 0
// means half the correct answer; HalfLife 0 means 50 units.
type EstimationSlide struct {
	Answer    float64
	Unit      string
	Hint      string
	Tolerance float64
	HalfLife  float64
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MapSlide holds the target coordinate plus the viewport players start from.
// MaxRadius 0 means 15000 km.
type MapSlide struct {
	Answer    LatLng
	MapCenter []float64
	MapZoom   int
	MaxRadius float64
}

// SortSlide holds the items and their correct ordering.
type SortSlide struct {
	Items        []string
	CorrectOrder []string
}

// VideoSlide optionally embeds follow-up question slides.
type VideoSlide struct {
	VideoURL  string
	VideoType string
	FollowUps []Slide
}

// MaxPoints returns the slide's point ceiling, applying the default.
func (s Slide) MaxPoints() int {
	if s.Points > 0 {
		return s.Points
	}
	return DefaultMaxPoints
}

// IsQuestion reports whether the slide is scored.
func (s Slide) IsQuestion() bool {
	switch s.Type {
	case SlideMultipleChoice, SlideTrueFalse, SlideEstimation, SlideMap, SlideSort:
		return true
	}
	return false
}

// slideJSON is the flat on-disk/wire shape. The quiz definition format keeps
// variant fields at the top level, with "answer" polymorphic over bool, number
// and coordinate object depending on "type".
type slideJSON struct {
	ID        string          `json:"id,omitempty"`
	Type      SlideType       `json:"type"`
	Title     string          `json:"title,omitempty"`
	Question  string          `json:"question,omitempty"`
	Image     string          `json:"image,omitempty"`
	TimeLimit int             `json:"timeLimit,omitempty"`
	Points    int             `json:"points,omitempty"`
	Options   []string        `json:"options,omitempty"`
	Correct   *int            `json:"correct,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	Hint      string          `json:"hint,omitempty"`
	Tolerance float64         `json:"tolerance,omitempty"`
	HalfLife  float64         `json:"halfLife,omitempty"`
	MapCenter []float64       `json:"mapCenter,omitempty"`
	MapZoom   int             `json:"mapZoom,omitempty"`
	MaxRadius float64         `json:"maxRadius,omitempty"`
	Items     []string        `json:"items,omitempty"`

	CorrectOrder      []string `json:"correctOrder,omitempty"`
	VideoURL          string   `json:"videoUrl,omitempty"`
	VideoType         string   `json:"videoType,omitempty"`
	FollowUpQuestions []Slide  `json:"followUpQuestions,omitempty"`
}

// UnmarshalJSON decodes the flat quiz-definition shape into the tagged union.
func (s *Slide) UnmarshalJSON(data []byte) error {
	var raw slideJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Slide{
		ID:        raw.ID,
		Type:      raw.Type,
		Title:     raw.Title,
		Question:  raw.Question,
		Image:     raw.Image,
		TimeLimit: raw.TimeLimit,
		Points:    raw.Points,
	}

	switch raw.Type {
	case SlideMultipleChoice:
		mc := &MultipleChoiceSlide{Options: raw.Options}
		if raw.Correct != nil {
			mc.Correct = *raw.Correct
		}
		s.MultipleChoice = mc
	case SlideTrueFalse:
		tf := &TrueFalseSlide{}
		if len(raw.Answer) > 0 {
			if err := json.Unmarshal(raw.Answer, &tf.Answer); err != nil {
				return err
			}
		}
		s.TrueFalse = tf
	case SlideEstimation:
		est := &EstimationSlide{
			Unit:      raw.Unit,
			Hint:      raw.Hint,
			Tolerance: raw.Tolerance,
			HalfLife:  raw.HalfLife,
		}
		if len(raw.Answer) > 0 {
			if err := json.Unmarshal(raw.Answer, &est.Answer); err != nil {
				return err
			}
		}
		s.Estimation = est
	case SlideMap:
		mg := &MapSlide{
			MapCenter: raw.MapCenter,
			MapZoom:   raw.MapZoom,
			MaxRadius: raw.MaxRadius,
		}
		if len(raw.Answer) > 0 {
			if err := json.Unmarshal(raw.Answer, &mg.Answer); err != nil {
				return err
			}
		}
		s.MapGuess = mg
	case SlideSort:
		s.Sort = &SortSlide{Items: raw.Items, CorrectOrder: raw.CorrectOrder}
	case SlideVideo:
		s.Video = &VideoSlide{
			VideoURL:  raw.VideoURL,
			VideoType: raw.VideoType,
			FollowUps: raw.FollowUpQuestions,
		}
	}
	return nil
}

// MarshalJSON emits the flat shape, solutions included. Only presenter-facing
// payloads marshal Slide directly; player payloads carry PlayerSlide instead.
func (s Slide) MarshalJSON() ([]byte, error) {
	raw := slideJSON{
		ID:        s.ID,
		Type:      s.Type,
		Title:     s.Title,
		Question:  s.Question,
		Image:     s.Image,
		TimeLimit: s.TimeLimit,
		Points:    s.Points,
	}

	switch {
	case s.MultipleChoice != nil:
		raw.Options = s.MultipleChoice.Options
		correct := s.MultipleChoice.Correct
		raw.Correct = &correct
	case s.TrueFalse != nil:
		raw.Answer, _ = json.Marshal(s.TrueFalse.Answer)
	case s.Estimation != nil:
		raw.Answer, _ = json.Marshal(s.Estimation.Answer)
		raw.Unit = s.Estimation.Unit
		raw.Hint = s.Estimation.Hint
		raw.Tolerance = s.Estimation.Tolerance
		raw.HalfLife = s.Estimation.HalfLife
	case s.MapGuess != nil:
		raw.Answer, _ = json.Marshal(s.MapGuess.Answer)
		raw.MapCenter = s.MapGuess.MapCenter
		raw.MapZoom = s.MapGuess.MapZoom
		raw.MaxRadius = s.MapGuess.MaxRadius
	case s.Sort != nil:
		raw.Items = s.Sort.Items
		raw.CorrectOrder = s.Sort.CorrectOrder
	case s.Video != nil:
		raw.VideoURL = s.Video.VideoURL
		raw.VideoType = s.Video.VideoType
		raw.FollowUpQuestions = s.Video.FollowUps
	}
	return json.Marshal(raw)
}

// PlayerSlide is the answer-safe projection of a Slide. It has no field that
// could hold a solution, so stripping is enforced by the type, not by runtime
// deletion.
type PlayerSlide struct {
	ID        string    `json:"id,omitempty"`
	Type      SlideType `json:"type"`
	Title     string    `json:"title,omitempty"`
	Question  string    `json:"question,omitempty"`
	Image     string    `json:"image,omitempty"`
	TimeLimit int       `json:"timeLimit,omitempty"`
	Points    int       `json:"points,omitempty"`

	Options   []string      `json:"options,omitempty"`
	Unit      string        `json:"unit,omitempty"`
	Hint      string        `json:"hint,omitempty"`
	MapCenter []float64     `json:"mapCenter,omitempty"`
	MapZoom   int           `json:"mapZoom,omitempty"`
	Items     []string      `json:"items,omitempty"`
	VideoURL  string        `json:"videoUrl,omitempty"`
	VideoType string        `json:"videoType,omitempty"`
	FollowUps []PlayerSlide `json:"followUpQuestions,omitempty"`
}

// PlayerView builds the projection for one recipient. Sort items come back in
// a fresh random order per call so the source ordering never hints at the
// solution. The rng may be nil for a non-deterministic shuffle.
func (s Slide) PlayerView(rnd *rand.Rand) PlayerSlide {
	view := PlayerSlide{
		ID:        s.ID,
		Type:      s.Type,
		Title:     s.Title,
		Question:  s.Question,
		Image:     s.Image,
		TimeLimit: s.TimeLimit,
		Points:    s.Points,
	}

	switch {
	case s.MultipleChoice != nil:
		view.Options = s.MultipleChoice.Options
	case s.Estimation != nil:
		view.Unit = s.Estimation.Unit
		view.Hint = s.Estimation.Hint
	case s.MapGuess != nil:
		view.MapCenter = s.MapGuess.MapCenter
		if len(view.MapCenter) == 0 {
			view.MapCenter = []float64{20, 0}
		}
		view.MapZoom = s.MapGuess.MapZoom
		if view.MapZoom == 0 {
			view.MapZoom = 2
		}
	case s.Sort != nil:
		view.Items = shuffled(s.Sort.Items, rnd)
	case s.Video != nil:
		view.VideoURL = s.Video.VideoURL
		view.VideoType = s.Video.VideoType
		for _, fq := range s.Video.FollowUps {
			view.FollowUps = append(view.FollowUps, fq.PlayerView(rnd))
		}
	}
	return view
}

func shuffled(items []string, rnd *rand.Rand) []string {
	out := make([]string, len(items))
	copy(out, items)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rnd != nil {
		rnd.Shuffle(len(out), swap)
	} else {
		rand.Shuffle(len(out), swap)
	}
	return out
}

// Quiz is the opaque ordered slide list a session runs through.
type Quiz struct {
	ID     string  `json:"id,omitempty"`
	Slides []Slide `json:"slides"`
}
