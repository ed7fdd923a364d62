// validation.go
package suiteprefs

import (
	"fmt"
	"unicode"
)

const maxKeyLength = 128

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key longer than %d bytes", ErrInvalidKey, maxKeyLength)
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: key %q contains whitespace or control characters", ErrInvalidKey, key)
		}
	}
	return nil
}
