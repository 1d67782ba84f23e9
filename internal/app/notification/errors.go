package notification

import "github.com/cockroachdb/errors"

// ErrEvicted is returned by Forward when the subscriber could not keep up.
// The client should subscribe again to receive a fresh snapshot.
var ErrEvicted = errors.New("subscriber evicted: too slow")
