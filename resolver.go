package suiteprefs

// Origin names the tier a resolved preference came from.
type Origin string

const (
	OriginExplicit    Origin = "explicit"
	OriginPersisted   Origin = "persisted"
	OriginEnvironment Origin = "environment"
	OriginDefault     Origin = "default"
)

// Source is one tier of a preference resolution chain.
type Source[T any] struct {
	Origin Origin
	Lookup func() (T, bool)
}

// Explicit is the caller-supplied tier. ok=false means the caller supplied nothing.
func Explicit[T any](v T, ok bool) Source[T] {
	return Source[T]{Origin: OriginExplicit, Lookup: func() (T, bool) { return v, ok }}
}

// Persisted is the stored-value tier.
func Persisted[T any](lookup func() (T, bool)) Source[T] {
	return Source[T]{Origin: OriginPersisted, Lookup: lookup}
}

// Environment is the detected-signal tier (system color scheme, locale).
func Environment[T any](lookup func() (T, bool)) Source[T] {
	return Source[T]{Origin: OriginEnvironment, Lookup: lookup}
}

// Default is the hardcoded tier; it always resolves.
func Default[T any](v T) Source[T] {
	return Source[T]{Origin: OriginDefault, Lookup: func() (T, bool) { return v, true }}
}

// Resolve returns the value of the first source that resolves, in argument order.
// Callers pass sources highest priority first: explicit, persisted, environment, default.
// If nothing resolves, the zero value and OriginDefault are returned.
func Resolve[T any](sources ...Source[T]) (T, Origin) {
	for _, src := range sources {
		if src.Lookup == nil {
			continue
		}
		if v, ok := src.Lookup(); ok {
			return v, src.Origin
		}
	}
	var zero T
	return zero, OriginDefault
}
