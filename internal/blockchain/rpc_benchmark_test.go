package blockchain

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
)

func BenchmarkParseTxErrorClassification(b *testing.B) {
	err := errors.New("Transaction simulation failed: Error processing Instruction 2: custom program error: 0x1")
	for i := 0; i < b.N; i++ {
		ParseTxError(err)
	}
}

// BenchmarkTokenAmountParse_Sscanf measures the fmt.Sscanf path used by
// GetTokenAccountBalance and fetchTokenAccounts.
func BenchmarkTokenAmountParse_Sscanf(b *testing.B) {
	amount := "1234567890123456789"
	var v uint64
	for i := 0; i < b.N; i++ {
		fmt.Sscanf(amount, "%d", &v)
	}
}

// BenchmarkTokenAmountParse_Strconv measures the strconv.ParseUint path
// used by GetAllTokenAccounts, a candidate replacement for Sscanf if
// this ever shows up in a profile.
func BenchmarkTokenAmountParse_Strconv(b *testing.B) {
	amount := "1234567890123456789"
	for i := 0; i < b.N; i++ {
		strconv.ParseUint(amount, 10, 64)
	}
}
