// Package storage defines the hierarchical directory/file handle contract the
// cache core consumes, plus its local-filesystem implementation. Handles are
// capability style: a Directory only reaches its own children, names with path
// separators or dot segments are rejected at the handle boundary, and writes
// go through a staged temp file that becomes visible only on Commit. Absence
// is always signalled with ErrNotFound so callers can separate cache misses
// from real storage failures.
package storage
