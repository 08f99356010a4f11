package policy

import "errors"

// ErrPolicyNotFound is returned when a policy file does not exist.
var ErrPolicyNotFound = errors.New("policy file not found")

// ErrInvalidPolicy is returned when a policy file is malformed or fails validation.
var ErrInvalidPolicy = errors.New("invalid policy file")

// ErrInvalidStatus is returned when a string does not name a known verdict.
var ErrInvalidStatus = errors.New("invalid status")
