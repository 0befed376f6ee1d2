package config

import "testing"

func TestGetShyftRPCURLMergesExistingQueryParams(t *testing.T) {
	t.Setenv("TEST_SHYFT_KEY", "shyft-789")
	path := writeConfig(t, `
rpc:
    shyft_url: https://rpc.shyft.to?foo=bar
    shyft_api_key_env: TEST_SHYFT_KEY
`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	got := m.GetShyftRPCURL()
	want := "https://rpc.shyft.to?foo=bar&api_key=shyft-789"
	if got != want {
		t.Errorf("GetShyftRPCURL() = %q, want %q", got, want)
	}
}

func TestGetShyftRPCURLLeavesURLUnchangedWhenEnvKeyMissing(t *testing.T) {
	path := writeConfig(t, `
rpc:
    shyft_url: https://rpc.shyft.to
    shyft_api_key_env: TEST_SHYFT_KEY_NEVER_SET
`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	got := m.GetShyftRPCURL()
	if got != "https://rpc.shyft.to" {
		t.Errorf("GetShyftRPCURL() = %q, want unchanged base url", got)
	}
}

func TestGetFallbackRPCURLUsesConfiguredFallbackURL(t *testing.T) {
	t.Setenv("TEST_HELIUS_KEY", "helius-456")
	path := writeConfig(t, `
rpc:
    shyft_url: https://rpc.shyft.to
    fallback_url: https://mainnet.helius-rpc.com
    fallback_api_key_env: TEST_HELIUS_KEY
`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	got := m.GetFallbackRPCURL()
	want := "https://mainnet.helius-rpc.com?api-key=helius-456"
	if got != want {
		t.Errorf("GetFallbackRPCURL() = %q, want %q", got, want)
	}
}

func TestGetFallbackRPCURLDefaultsWhenNotConfigured(t *testing.T) {
	path := writeConfig(t, `
rpc:
    shyft_url: https://rpc.shyft.to
`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	got := m.GetFallbackRPCURL()
	if got == "" {
		t.Error("GetFallbackRPCURL() returned empty, expected the default public RPC fallback")
	}
}
