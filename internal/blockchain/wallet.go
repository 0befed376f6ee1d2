package blockchain

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// SignerCapability is the signing collaborator TxFactory depends on.
// Wallet is the only production implementation; tests can substitute
// their own.
type SignerCapability interface {
	Address() string
	PublicKey() []byte
	Sign(message []byte) []byte
}

// Wallet holds an Ed25519 keypair and implements SignerCapability.
type Wallet struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    string
}

// NewWallet loads a wallet from a base58-encoded private key (32-byte
// seed or 64-byte seed+public key).
//
// SECURITY WARNING: accepting a private key as a plain string is
// inherently risky. Load it from an environment variable or a secret
// manager, never a config file or source code, at call sites.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	var privateKey ed25519.PrivateKey
	switch len(privateKeyBytes) {
	case ed25519.PrivateKeySize:
		privateKey = ed25519.PrivateKey(privateKeyBytes)
	case ed25519.SeedSize:
		privateKey = ed25519.NewKeyFromSeed(privateKeyBytes)
	default:
		return nil, fmt.Errorf("invalid private key length: %d (expected %d or %d)", len(privateKeyBytes), ed25519.SeedSize, ed25519.PrivateKeySize)
	}

	publicKey := privateKey.Public().(ed25519.PublicKey)
	address := base58.Encode(publicKey)
	log.Info().Str("address", address).Msg("wallet loaded")

	return &Wallet{privateKey: privateKey, publicKey: publicKey, address: address}, nil
}

// Address returns the wallet's public key as a base58 string.
func (w *Wallet) Address() string { return w.address }

// PublicKey returns the wallet's raw public key bytes.
func (w *Wallet) PublicKey() []byte { return w.publicKey }

// Sign signs message with the wallet's private key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.privateKey, message)
}

// BalanceTracker caches a wallet's SOL balance between RPC refreshes so
// the risk engine and order sizing never block on a network call.
type BalanceTracker struct {
	mu              sync.RWMutex
	wallet          SignerCapability
	rpc             *RPCClient
	balanceLamports uint64
}

// NewBalanceTracker creates a BalanceTracker for wallet, backed by rpc.
func NewBalanceTracker(wallet SignerCapability, rpc *RPCClient) *BalanceTracker {
	return &BalanceTracker{wallet: wallet, rpc: rpc}
}

// Refresh fetches the current balance from RPC.
func (b *BalanceTracker) Refresh(ctx context.Context) error {
	balance, err := b.rpc.GetBalance(ctx, b.wallet.Address())
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.balanceLamports = balance
	b.mu.Unlock()
	return nil
}

// BalanceLamports returns the last-known balance in lamports.
func (b *BalanceTracker) BalanceLamports() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceLamports
}

// BalanceSOL returns the last-known balance in SOL.
func (b *BalanceTracker) BalanceSOL() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return float64(b.balanceLamports) / 1e9
}

// SetBalance overrides the cached balance, e.g. from a WebSocket push.
func (b *BalanceTracker) SetBalance(lamports uint64) {
	b.mu.Lock()
	b.balanceLamports = lamports
	b.mu.Unlock()
}

// HasSufficientBalance reports whether the cached balance covers
// amountLamports plus feesLamports.
func (b *BalanceTracker) HasSufficientBalance(amountLamports, feesLamports uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceLamports >= amountLamports+feesLamports
}
