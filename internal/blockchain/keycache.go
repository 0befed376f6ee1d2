package blockchain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// KeyStore auto-generates a disposable signing key and caches it on
// disk so a process restart doesn't mint a fresh, unfunded wallet.
type KeyStore struct {
	path         string
	refreshEvery time.Duration

	mu          sync.RWMutex
	privateKey  []byte
	publicKey   ed25519.PublicKey
	address     string
	lastRefresh time.Time
}

// cachedKey is the on-disk JSON representation of a cached key.
type cachedKey struct {
	PrivateKey  string    `json:"private_key"`
	Address     string    `json:"address"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewKeyStore creates a KeyStore backed by a cache file under cacheDir,
// refreshed (a fresh key generated) every refreshEvery.
func NewKeyStore(cacheDir string, refreshEvery time.Duration) *KeyStore {
	return &KeyStore{
		path:         filepath.Join(cacheDir, "wallet_cache.json"),
		refreshEvery: refreshEvery,
	}
}

// GetOrGenerate returns the cached wallet if one is on disk and still
// within refreshEvery, otherwise generates and caches a new one.
func (s *KeyStore) GetOrGenerate() (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadFromDisk() {
		log.Info().Str("address", s.address).Time("generatedAt", s.lastRefresh).Msg("loaded wallet from cache")
		return s.wallet(), nil
	}

	if err := s.generate(); err != nil {
		return nil, err
	}
	if err := s.saveToDisk(); err != nil {
		log.Warn().Err(err).Msg("failed to cache wallet key")
	}
	log.Info().Str("address", s.address).Dur("refreshEvery", s.refreshEvery).Msg("generated new wallet")
	return s.wallet(), nil
}

// Address returns the current wallet's address.
func (s *KeyStore) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// ShouldRefresh reports whether refreshEvery has elapsed since the key
// was last generated or loaded.
func (s *KeyStore) ShouldRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastRefresh) > s.refreshEvery
}

// Refresh generates and caches a new key unconditionally.
func (s *KeyStore) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.generate(); err != nil {
		return err
	}
	if err := s.saveToDisk(); err != nil {
		return err
	}
	log.Info().Str("address", s.address).Msg("wallet key refreshed")
	return nil
}

func (s *KeyStore) loadFromDisk() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}

	var cached cachedKey
	if err := json.Unmarshal(data, &cached); err != nil {
		return false
	}
	if time.Since(cached.GeneratedAt) > s.refreshEvery {
		return false
	}

	s.privateKey, _ = base58.Decode(cached.PrivateKey)
	s.address = cached.Address
	s.lastRefresh = cached.GeneratedAt
	if len(s.privateKey) >= ed25519.PrivateKeySize {
		s.publicKey = ed25519.PublicKey(s.privateKey[ed25519.SeedSize:ed25519.PrivateKeySize])
	}
	return true
}

func (s *KeyStore) saveToDisk() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cachedKey{
		PrivateKey:  base58.Encode(s.privateKey),
		Address:     s.address,
		GeneratedAt: s.lastRefresh,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *KeyStore) generate() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	s.publicKey = pub
	s.privateKey = priv
	s.address = base58.Encode(pub)
	s.lastRefresh = time.Now()
	return nil
}

func (s *KeyStore) wallet() *Wallet {
	return &Wallet{privateKey: s.privateKey, publicKey: s.publicKey, address: s.address}
}
