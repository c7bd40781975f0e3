package artifact

import "errors"

var (
	// ErrExtensionNotAllowed is returned for artifact types outside the
	// backend's download allow-list.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")

	// ErrInvalidFilename is returned when the remote path yields no safe
	// local filename.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrDownloadFailed wraps non-2xx responses from the download endpoint.
	ErrDownloadFailed = errors.New("download failed")
)

// ValidateFilename checks that a local filename is safe to create.
//
// Rules: non-empty, at most 255 characters, no path separators or null
// bytes, not "." or "..".
func ValidateFilename(name string) error {
	if name == "" || len(name) > 255 {
		return ErrInvalidFilename
	}
	for _, c := range name {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrInvalidFilename
		}
	}
	if name == "." || name == ".." {
		return ErrInvalidFilename
	}
	return nil
}
