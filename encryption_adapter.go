package suiteprefs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/CreativeUnicorns/suiteprefs/encryption"
)

// EnvRetiredKeysName holds comma-separated key material that can still open
// slots but is never used to seal new ones.
const EnvRetiredKeysName = "SUITEPREFS_ENCRYPTION_RETIRED_KEYS"

const keyIDPrefix = "k:"

// ErrUnknownKeyID is returned when a slot was sealed under a key the adapter does not hold.
var ErrUnknownKeyID = errors.New("slot sealed under an unknown encryption key")

// EncryptionAdapter seals slots with the active key and tags each payload with
// that key's id, "k:<id>:v1:...". Retired keys keep older slots readable while
// keys rotate. Untagged payloads written before tagging are opened with the
// active key.
type EncryptionAdapter struct {
	active  *encryption.Manager
	byKeyID map[string]*encryption.Manager
}

var _ Encryptor = (*EncryptionAdapter)(nil)

// NewEncryptionAdapter reads the active key from encryption.EnvKeyName and the
// retired keys from EnvRetiredKeysName. It fails fast when any key is missing or too short.
func NewEncryptionAdapter() (*EncryptionAdapter, error) {
	active, err := encryption.NewManager()
	if err != nil {
		return nil, err
	}
	var retired [][]byte
	for _, k := range strings.Split(os.Getenv(EnvRetiredKeysName), ",") {
		if k = strings.TrimSpace(k); k != "" {
			retired = append(retired, []byte(k))
		}
	}
	return newEncryptionAdapter(active, retired)
}

// NewEncryptionAdapterWithKey builds an adapter that seals with key and can
// still open slots sealed under any of retired.
func NewEncryptionAdapterWithKey(key []byte, retired ...[]byte) (*EncryptionAdapter, error) {
	active, err := encryption.NewManagerWithKey(key)
	if err != nil {
		return nil, err
	}
	return newEncryptionAdapter(active, retired)
}

func newEncryptionAdapter(active *encryption.Manager, retired [][]byte) (*EncryptionAdapter, error) {
	a := &EncryptionAdapter{
		active:  active,
		byKeyID: map[string]*encryption.Manager{active.KeyID(): active},
	}
	for i, material := range retired {
		m, err := encryption.NewManagerWithKey(material)
		if err != nil {
			return nil, fmt.Errorf("retired key %d: %w", i, err)
		}
		if _, ok := a.byKeyID[m.KeyID()]; !ok {
			a.byKeyID[m.KeyID()] = m
		}
	}
	return a, nil
}

// KeyID identifies the key new slots are sealed with.
func (e *EncryptionAdapter) KeyID() string {
	return e.active.KeyID()
}

func (e *EncryptionAdapter) Encrypt(plaintext string) (string, error) {
	sealed, err := e.active.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return keyIDPrefix + e.active.KeyID() + ":" + sealed, nil
}

func (e *EncryptionAdapter) Decrypt(payload string) (string, error) {
	tagged, ok := strings.CutPrefix(payload, keyIDPrefix)
	if !ok {
		return e.active.Decrypt(payload)
	}
	kid, sealed, ok := strings.Cut(tagged, ":")
	if !ok {
		return "", encryption.ErrInvalidCiphertext
	}
	m, ok := e.byKeyID[kid]
	if !ok {
		return "", fmt.Errorf("%w: %w %q", encryption.ErrDecryptionFailed, ErrUnknownKeyID, kid)
	}
	return m.Decrypt(sealed)
}

// NeedsRotation reports whether payload was sealed under a key other than the active one.
func (e *EncryptionAdapter) NeedsRotation(payload string) bool {
	tagged, ok := strings.CutPrefix(payload, keyIDPrefix)
	if !ok {
		return true
	}
	kid, _, _ := strings.Cut(tagged, ":")
	return kid != e.active.KeyID()
}
