package model

import "errors"

var (
	// ErrPathNotFound is returned when a root or channel path is missing.
	ErrPathNotFound = errors.New("path not found")

	// ErrFormatUndetected is returned when detection has no clear winner and
	// no format hint was supplied.
	ErrFormatUndetected = errors.New("format undetected")

	// ErrNoCapacityData is returned when a capacity analysis has no charge
	// or discharge capacity to work from.
	ErrNoCapacityData = errors.New("no capacity data")

	// ErrNotFound is returned when a stored run or phase does not exist.
	ErrNotFound = errors.New("not found")
)
