// Package quizfile loads quiz definitions from a JSON file on disk. The file
// is re-read on every load, so edits between session runs take effect without
// a restart.
package quizfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"slidecast/internal/domain"
)

// Loader reads a quiz definition file of the shape {"slides": [...]}.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("read quiz file %s: %w", l.path, err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("parse quiz file %s: %w", l.path, err)
	}
	quiz.ID = quizID
	return quiz, nil
}
