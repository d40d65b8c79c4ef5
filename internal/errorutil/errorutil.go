package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues, such as an end event without a
// matching begin event.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrMalformedInput is returned when an input file contains a value that
// can't be decoded outside of an expected truncation point.
var ErrMalformedInput = errors.New("malformed input")

// ErrNoResults represents situations in which no results were returned by the called API.
var ErrNoResults = errors.New("no results returned")
