package testutil

import (
	"context"
	"sync"

	"github.com/CreativeUnicorns/suiteprefs"
)

// GatedBackend holds the first Save of one key/value pair until Release is called.
// Every other call goes straight to the wrapped Backend.
type GatedBackend struct {
	suiteprefs.Backend

	key, value string
	once       sync.Once
	reached    chan struct{}
	release    chan struct{}
}

// NewGatedBackend gates the Save of value (the raw JSON, e.g. `"light"`) under key.
func NewGatedBackend(b suiteprefs.Backend, key, value string) *GatedBackend {
	return &GatedBackend{
		Backend: b,
		key:     key,
		value:   value,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *GatedBackend) Save(ctx context.Context, rec *suiteprefs.Record) error {
	if rec.Key == g.key && rec.Value == g.value {
		hold := false
		g.once.Do(func() { hold = true })
		if hold {
			close(g.reached)
			<-g.release
		}
	}
	return g.Backend.Save(ctx, rec)
}

// Reached is closed once the gated Save is blocked.
func (g *GatedBackend) Reached() <-chan struct{} { return g.reached }

// Release lets the gated Save through.
func (g *GatedBackend) Release() { close(g.release) }
