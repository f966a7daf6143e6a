package domain

import "errors"

// ErrStateNotFound is returned when a room has no in-progress activity.
var ErrStateNotFound = errors.New("activity state not found")

// ErrActivityNotFound is returned when an activity document cannot be loaded.
var ErrActivityNotFound = errors.New("activity not found")

// ErrInvalidPath is returned when a document path escapes the loader's root.
var ErrInvalidPath = errors.New("invalid activity path")

// ErrStepNotFound is returned when a section/step pair does not exist in the document.
var ErrStepNotFound = errors.New("step not found")

// ErrInvalidTarget is returned for navigation targets not in section_id:step_id form.
var ErrInvalidTarget = errors.New("invalid navigation target")
