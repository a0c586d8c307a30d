// Package cachefs is the file-system adapter behind the cache facade. It owns
// the single memoized root handle, lays each entry out as a data file plus a
// ".meta" JSON sidecar in a directory tree mirroring the key's path, and keeps
// "data file present" as the only existence signal: the sidecar is committed
// before the data file on write, tolerated when absent on read, and removed
// independently on delete. Empty directories left behind by deletes are pruned
// bottom-up on a best-effort basis.
package cachefs
