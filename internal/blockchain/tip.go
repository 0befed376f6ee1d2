package blockchain

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// SystemProgramID is the native Solana system program.
const SystemProgramID = "11111111111111111111111111111111111111111"

// systemTransferInstructionIndex is the instruction discriminator for
// SystemProgram::Transfer.
const systemTransferInstructionIndex = 2

// BuildTip constructs a signed system-transfer transaction paying
// lamports to toAccount. It is the head-of-bundle tip transaction the
// Bundler prepends to every flush. The message layout is a legacy
// (non-versioned) Solana message: header, compact account key list,
// blockhash, and a single compiled instruction.
func (b *TransactionBuilder) BuildTip(ctx context.Context, lamports uint64, toAccount string) ([]byte, error) {
	blockhash, err := b.GetRecentBlockhash()
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash for tip: %w", err)
	}

	toBytes, err := base58.Decode(toAccount)
	if err != nil {
		return nil, fmt.Errorf("decode tip account %q: %w", toAccount, err)
	}
	if len(toBytes) != 32 {
		return nil, fmt.Errorf("tip account %q is not a 32-byte pubkey", toAccount)
	}

	blockhashBytes, err := base58.Decode(blockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}

	programBytes, _ := base58.Decode(SystemProgramID)

	message, err := buildTransferMessage(b.wallet.PublicKey(), toBytes, programBytes, blockhashBytes, lamports)
	if err != nil {
		return nil, err
	}

	signature := b.wallet.Sign(message)

	tx := make([]byte, 0, 1+64+len(message))
	tx = append(tx, 1) // compact-u16 signature count
	tx = append(tx, signature...)
	tx = append(tx, message...)
	return tx, nil
}

// buildTransferMessage compiles a single-instruction legacy message:
// feePayer and toAccount as writable signed/unwritable keys, the system
// program as a readonly unsigned key, followed by the recent blockhash
// and one compiled SystemProgram::Transfer instruction.
func buildTransferMessage(feePayer, toAccount, programID, blockhash []byte, lamports uint64) ([]byte, error) {
	if len(feePayer) != 32 || len(toAccount) != 32 || len(programID) != 32 || len(blockhash) != 32 {
		return nil, fmt.Errorf("all message keys must be 32 bytes")
	}

	msg := make([]byte, 0, 3+1+3*32+32+1+1+1+2+8)

	// Message header: numRequiredSignatures, numReadonlySignedAccounts, numReadonlyUnsignedAccounts
	msg = append(msg, 1, 0, 1)

	// Compact-u16 account key count (3: fee payer, recipient, system program)
	msg = append(msg, 3)
	msg = append(msg, feePayer...)
	msg = append(msg, toAccount...)
	msg = append(msg, programID...)

	// Recent blockhash
	msg = append(msg, blockhash...)

	// Instruction count (compact-u16)
	msg = append(msg, 1)

	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferInstructionIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	// Compiled instruction: programIdIndex, accountsLen, accountIndices..., dataLen, data...
	msg = append(msg, 2)       // programIdIndex (index into account keys)
	msg = append(msg, 2)       // number of accounts referenced
	msg = append(msg, 0, 1)    // fee payer (writable signer), recipient (writable)
	msg = append(msg, byte(len(data)))
	msg = append(msg, data...)

	return msg, nil
}

// ReSignSwapTransaction signs a base64-encoded unsigned versioned
// transaction obtained from a quote/swap service and returns the raw
// signed transaction bytes. The relay layer (Bundler) is responsible
// for base58-encoding these bytes before broadcast.
func (b *TransactionBuilder) ReSignSwapTransaction(serializedTxBase64 string) ([]byte, error) {
	signedB64, err := b.SignSerializedTransaction(serializedTxBase64)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(signedB64)
}
