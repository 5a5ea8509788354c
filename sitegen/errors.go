// CLAUDE:SUMMARY Sentinel errors for the sitegen service: invalid input and upstream model failure.
package sitegen

import "errors"

// ErrInvalidInput is returned when a request is missing a required field or
// names a file that cannot be written.
var ErrInvalidInput = errors.New("sitegen: invalid input")

// ErrUpstream wraps failures of the text-generation model.
var ErrUpstream = errors.New("sitegen: model call failed")

// ErrNotHTML is returned by Outline for files that are not HTML pages.
var ErrNotHTML = errors.New("sitegen: not an html file")
