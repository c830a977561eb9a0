package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrDuplicateName  = errors.New("player name already taken")
	ErrDuplicateEmail = errors.New("email already registered")

	// Input errors
	ErrValidation     = errors.New("validation failed")
	ErrInvalidOutcome = errors.New("result must be one of win, loss, tie")
)
