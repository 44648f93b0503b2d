// Package segfile packs several independent byte streams ("segments") into a
// single seekable file. A header table at the start of the container lists
// every segment with its type tag, flags and physical location. Segments can
// carry an integrity envelope (a length-bound digest plus an optional
// signature) and can be compressed.
//
// Writing reserves header space up front and patches it in place once each
// segment is closed, so the container never has to move data. Reading walks
// the header table sequentially; only one segment may be open at a time
// because every segment shares the same physical cursor.
//
// Layers nest in a fixed order: bounded view, then integrity envelope, then
// compression. The digest therefore covers the stored (compressed) bytes and
// corruption is caught before any decompression happens.
package segfile

import "errors"

// Sentinel errors for programmatic handling. Callers use errors.Is to tell
// misuse (ErrInvalidArgument, ErrInvalidOperation) from damaged or tampered
// data (ErrIntegrity, ErrCorrupt).
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrIntegrity        = errors.New("integrity check failed")
	ErrCorrupt          = errors.New("corrupt data")
	ErrClosed           = errors.New("stream is closed")
	ErrUnsupported      = errors.New("unsupported algorithm")
	ErrLocked           = errors.New("container is locked") // Conflicting file lock without Options.WaitLock
)
