package model

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidBudget       = errors.New("invalid budget")
	ErrInvalidUser         = errors.New("invalid user")
	ErrInvalidNotification = errors.New("invalid notification")
)
