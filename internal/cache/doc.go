// Package cache exposes the four-operation cache facade (Match/Put/Delete/
// Keys) over the file-system adapter, mirroring the browser Cache interface so
// it can substitute for quota-limited stores when persisting very large
// payloads such as model weights. Keys are strings, URLs, or requests; stored
// values are Response carriers whose body streams straight from disk. The
// facade itself is a thin pass-through: key resolution lives in cachepath and
// all storage policy lives in cachefs.
package cache
