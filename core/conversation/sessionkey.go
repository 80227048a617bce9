package conversation

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// ErrSessionKeyMissing is returned by write-path operations that need a
// session key that has not been cached. Read paths never surface it; they
// render an undecryptable placeholder instead.
var ErrSessionKeyMissing = Err("no session key cached for pair")

// PairKey identifies the unordered pair of addresses sharing one session key.
// Both orderings of the same two addresses map to the same PairKey.
type PairKey struct {
	Low  string
	High string
}

// NewPairKey canonicalizes a pair: addresses are lowercased and ordered
// lexicographically.
func NewPairKey(a, b string) PairKey {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if b < a {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// KeyDeriver produces the shared key for a pair of participants. The real
// implementation sits behind wallet signing and lives outside this package;
// the engine only consumes its opaque result.
type KeyDeriver interface {
	DeriveSharedKey(ctx context.Context, self, counterparty string) (string, error)
}

// SessionKeyStore caches pairwise symmetric keys by unordered address pair,
// so KeyFor(a, b) and KeyFor(b, a) always agree. It never creates key
// material itself.
type SessionKeyStore struct {
	mu      sync.RWMutex
	keys    map[PairKey]string
	deriver KeyDeriver
	group   singleflight.Group
}

// NewSessionKeyStore returns an empty store. The deriver may be nil, in which
// case Obtain only serves already-cached keys.
func NewSessionKeyStore(deriver KeyDeriver) *SessionKeyStore {
	return &SessionKeyStore{
		keys:    make(map[PairKey]string),
		deriver: deriver,
	}
}

// KeyFor returns the cached key for the pair, if any.
func (s *SessionKeyStore) KeyFor(a, b string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[NewPairKey(a, b)]
	return key, ok
}

// Put caches a key for the pair.
func (s *SessionKeyStore) Put(a, b, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[NewPairKey(a, b)] = key
}

// Obtain returns the cached key or derives it exactly once, deduplicating
// concurrent derivations for the same pair. Derivation is the only operation
// here that can block on the wallet collaborator.
func (s *SessionKeyStore) Obtain(ctx context.Context, self, counterparty string) (string, error) {
	if key, ok := s.KeyFor(self, counterparty); ok {
		return key, nil
	}
	if s.deriver == nil {
		return "", ErrSessionKeyMissing
	}

	pk := NewPairKey(self, counterparty)
	v, err, _ := s.group.Do(pk.Low+"|"+pk.High, func() (interface{}, error) {
		if key, ok := s.KeyFor(self, counterparty); ok {
			return key, nil
		}
		key, err := s.deriver.DeriveSharedKey(ctx, self, counterparty)
		if err != nil {
			return nil, err
		}
		s.Put(self, counterparty, key)
		return key, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// DisputeEnvelope is the payload stored at a dispute event's content hash.
// The existing creator-worker session key is wrapped under the initiator's
// channel key with the arbitrator, and the message body is sealed with the
// original session key. The arbitrator unwraps the key first, then opens the
// body with it.
type DisputeEnvelope struct {
	EncryptedKey     string `json:"encrypted_key"`
	EncryptedContent string `json:"encrypted_content"`
}

// WrapSessionKey encrypts an existing session key under another channel's
// key so a third party can recover it without holding either participant's
// credentials.
func WrapSessionKey(sessionKey, channelKey string) (string, error) {
	return EncryptToString(channelKey, []byte(sessionKey))
}

// UnwrapSessionKey reverses WrapSessionKey.
func UnwrapSessionKey(wrapped, channelKey string) (string, error) {
	plain, err := DecryptString(channelKey, wrapped)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
