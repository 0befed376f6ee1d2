package blockchain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetAllTokenAccountsParsesNestedParsedInfo(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		if method != "getTokenAccountsByOwner" {
			t.Fatalf("unexpected method %s", method)
		}
		if len(params) < 3 {
			t.Fatalf("expected at least 3 params, got %d", len(params))
		}
		if params[0] != "OwnerAddress" {
			t.Errorf("expected owner OwnerAddress, got %v", params[0])
		}
		filter, ok := params[1].(map[string]interface{})
		if !ok || filter["programId"] != TokenProgramID {
			t.Errorf("expected programId filter %s, got %v", TokenProgramID, params[1])
		}

		return map[string]interface{}{
			"value": []map[string]interface{}{
				{
					"pubkey": "Account1",
					"account": map[string]interface{}{
						"data": map[string]interface{}{
							"parsed": map[string]interface{}{
								"info": map[string]interface{}{
									"mint":        "Mint1",
									"tokenAmount": map[string]interface{}{"amount": "1000", "decimals": 6},
								},
							},
						},
					},
				},
				{
					"pubkey": "Account2",
					"account": map[string]interface{}{
						"data": map[string]interface{}{
							"parsed": map[string]interface{}{
								"info": map[string]interface{}{
									"mint":        "Mint2",
									"tokenAmount": map[string]interface{}{"amount": "2000", "decimals": 9},
								},
							},
						},
					},
				},
			},
		}, nil
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, srv.URL, "test-api-key")
	accounts, err := client.GetAllTokenAccounts(context.Background(), "OwnerAddress")
	if err != nil {
		t.Fatalf("GetAllTokenAccounts failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Mint != "Mint1" || accounts[0].Amount != 1000 || accounts[0].Decimals != 6 {
		t.Errorf("unexpected account 0: %+v", accounts[0])
	}
	if accounts[1].Mint != "Mint2" || accounts[1].Amount != 2000 {
		t.Errorf("unexpected account 1: %+v", accounts[1])
	}
}

func TestGetTokenAccountsByOwnerFiltersByMintWhenGiven(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		filter, _ := req.Params[1].(map[string]interface{})
		if filter["mint"] != "SpecificMint" {
			t.Errorf("expected mint filter SpecificMint, got %v", filter)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":[]}}`))
	}))
	defer srv.Close()

	client := NewRPCClient(srv.URL, srv.URL, "")
	if _, err := client.GetTokenAccountsByOwner(context.Background(), "Owner", "SpecificMint"); err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}
}
