package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty indicates a loaded definition contains no slides.
	ErrQuizEmpty = errors.New("quiz has no slides")
)
