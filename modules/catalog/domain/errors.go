package domain

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrOverrideNotFound = errors.New("price override not found")
	ErrInvalidPrice     = errors.New("price must not be negative")
	ErrInvalidSKU       = errors.New("sku is required")
	ErrInvalidName      = errors.New("product name is required")
	ErrInvalidCondition = errors.New("unknown card condition")
	ErrInvalidWindow    = errors.New("override window ends before it starts")
	ErrDuplicateSKU     = errors.New("sku already exists")
)
