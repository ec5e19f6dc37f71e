package idgen

import "github.com/google/uuid"

// NewFunc produces correlation ids and receipt tokens. Tests replace it to get
// predictable values.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new random (v4) identifier.
func New() string { return NewFunc() }
