// errors.go
package suiteprefs

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input parameters")
	ErrInvalidKey          = errors.New("invalid preference key")
	ErrInvalidValue        = errors.New("invalid preference value")
	ErrNotFound            = errors.New("preference not found")
	ErrSerialization       = errors.New("preference serialization failed")
	ErrStorageUnavailable  = errors.New("storage backend unavailable")
	ErrCacheUnavailable    = errors.New("cache backend unavailable")
	ErrNotInitialized      = errors.New("service not initialized")
	ErrUnsupportedLanguage = errors.New("language not supported")
	ErrInvalidMode         = errors.New("invalid theme mode")
	ErrIncompleteTheme     = errors.New("custom theme is incomplete")
	ErrInvalidPayload      = errors.New("invalid payload")
)
