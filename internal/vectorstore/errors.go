package vectorstore

import "errors"

// ErrNotFound is returned when a record or collection does not exist.
var ErrNotFound = errors.New("vectorstore: not found")

// ErrUnsupportedProvider is returned by NewBackend for a Provider with no
// concrete Go implementation (see DESIGN.md for the documented-but-
// unimplemented provider slots).
var ErrUnsupportedProvider = errors.New("vectorstore: unsupported provider")
