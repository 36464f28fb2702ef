//go:build !darwin

package platform

// MainConnectionID returns this process's window-server connection. Only the
// macOS window server has one.
func MainConnectionID() (int32, error) {
	return 0, ErrUnsupported
}
