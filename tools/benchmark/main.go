// Command benchmark compares RPC endpoint latency for the handful of
// methods the trading engine actually calls on its hot path
// (getLatestBlockhash, getBalance), using the same blockchain.RPCClient
// the engine itself uses rather than a standalone HTTP client.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"solana-strategy-engine/internal/blockchain"
)

const sampleWallet = "vines1vzrYbzLMRdu58ou5XTby4qAqVRLmqo36NKPTg"

type endpoint struct {
	name string
	url  string
}

func main() {
	fmt.Printf("RPC endpoint benchmark — %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	var endpoints []endpoint
	if key := os.Getenv("SHYFT_API_KEY"); key != "" {
		endpoints = append(endpoints, endpoint{"Shyft", "https://rpc.shyft.to?api_key=" + key})
	} else {
		fmt.Println("SHYFT_API_KEY not set, skipping Shyft")
	}
	if key := os.Getenv("HELIUS_API_KEY"); key != "" {
		endpoints = append(endpoints, endpoint{"Helius", "https://mainnet.helius-rpc.com/?api-key=" + key})
	} else {
		fmt.Println("HELIUS_API_KEY not set, skipping Helius")
	}
	if len(endpoints) == 0 {
		fmt.Println("no API keys provided; set SHYFT_API_KEY or HELIUS_API_KEY")
		os.Exit(1)
	}

	const iterations = 30
	ctx := context.Background()

	for _, ep := range endpoints {
		fmt.Printf("%s (%d iterations each)\n", ep.name, iterations)

		rpc := blockchain.NewRPCClient(ep.url, ep.url, "")

		blockhashLatencies := timeCalls(iterations, func() error {
			_, err := rpc.GetLatestBlockhash(ctx)
			return err
		})
		report("getLatestBlockhash", blockhashLatencies)

		balanceLatencies := timeCalls(iterations, func() error {
			_, err := rpc.GetBalance(ctx, sampleWallet)
			return err
		})
		report("getBalance", balanceLatencies)

		fmt.Println()
	}
}

func timeCalls(iterations int, call func() error) []int64 {
	latencies := make([]int64, 0, iterations)
	for i := 0; i < iterations; i++ {
		start := time.Now()
		if err := call(); err != nil {
			continue
		}
		latencies = append(latencies, time.Since(start).Milliseconds())
		time.Sleep(50 * time.Millisecond)
	}
	return latencies
}

func report(name string, latencies []int64) {
	if len(latencies) == 0 {
		fmt.Printf("   %-20s FAILED\n", name)
		return
	}
	p50, p95, p99, avg := stats(latencies)
	fmt.Printf("   %-20s p50: %4dms  p95: %4dms  p99: %4dms  avg: %4dms\n", name, p50, p95, p99, avg)
}

func stats(latencies []int64) (p50, p95, p99, avg int64) {
	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	p50 = sorted[n*50/100]
	p95 = sorted[n*95/100]
	if n > 1 {
		p99 = sorted[n*99/100]
	} else {
		p99 = sorted[n-1]
	}

	var sum int64
	for _, l := range sorted {
		sum += l
	}
	avg = sum / int64(n)
	return
}
