package texturepacker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSettings is wrapped by every settings validation failure
	ErrInvalidSettings = errors.New("invalid packer settings")
	// ErrImageTooLarge is returned when an image cannot fit on an empty page
	ErrImageTooLarge = errors.New("image does not fit on a page")
)

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
}
