package constants

import "os"

// Directory permission constants.
const (
	// DirPermStandard is the standard directory permission (owner rwx, group r-x).
	DirPermStandard os.FileMode = 0750
)

// File permission constants.
const (
	// FilePermPrivate is the file permission for sensitive files (owner rw only).
	FilePermPrivate os.FileMode = 0600
)
