//go:build !unix

package ledger

// lockFile is a no-op where flock is unavailable; only the in-process mutex
// serializes writers.
func lockFile(path string, exclusive bool) (func(), error) {
	return func() {}, nil
}
