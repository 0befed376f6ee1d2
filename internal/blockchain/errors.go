package blockchain

import "strings"

// ErrorKind classifies a transaction failure the way the engine's
// error taxonomy does: transient errors get retried with backoff,
// validation/business-rule errors are surfaced as a typed outcome and
// never retried, and fatal errors mean the caller shouldn't retry at
// all.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransient
	KindValidation
	KindBusinessRule
	KindFatal
)

// TxError is the classified, human-readable form of an RPC or
// simulation failure produced by ParseTxError.
type TxError struct {
	Kind    ErrorKind
	Code    int
	Raw     string
	Message string
	Action  string
}

func (e *TxError) Error() string { return e.Message }

// Retryable reports whether the taxonomy says this failure is worth
// retrying with backoff.
func (e *TxError) Retryable() bool { return e.Kind == KindTransient }

type txErrorRule struct {
	match   string
	kind    ErrorKind
	message string
	action  string
}

// txErrorRules maps substrings seen in raw RPC/simulation errors to a
// classified, human-readable outcome. Order matters: first match wins.
var txErrorRules = []txErrorRule{
	{"no record of a prior credit", KindValidation, "❌ INSUFFICIENT BALANCE - wallet has 0 SOL", "fund wallet with SOL"},
	{"insufficient funds", KindValidation, "❌ INSUFFICIENT BALANCE - not enough SOL for trade + fees", "add more SOL to wallet"},
	{"insufficient lamports", KindValidation, "❌ INSUFFICIENT BALANCE - not enough lamports", "add more SOL to wallet"},

	{"slippage", KindBusinessRule, "❌ SLIPPAGE TOO HIGH - price moved too much", "increase slippage_bps in config"},
	{"exceededslippage", KindBusinessRule, "❌ SLIPPAGE EXCEEDED - market moved against you", "try again or increase slippage"},

	{"blockhash not found", KindTransient, "❌ BLOCKHASH EXPIRED - transaction took too long", "retry immediately"},
	{"block height exceeded", KindTransient, "❌ TRANSACTION EXPIRED - blockhash too old", "retry immediately"},

	{"429", KindTransient, "⚠️ RATE LIMITED - too many requests", "wait and retry"},
	{"rate limit", KindTransient, "⚠️ RATE LIMITED - RPC throttled", "wait 1-2 seconds and retry"},

	{"account not found", KindValidation, "❌ TOKEN ACCOUNT NOT FOUND - you may not own this token", "check token balance"},
	{"accountnotfound", KindValidation, "❌ ACCOUNT MISSING - required account doesn't exist", "token may need ATA creation"},

	{"compute budget exceeded", KindBusinessRule, "❌ OUT OF COMPUTE - transaction too complex", "increase compute unit limit"},

	{"custom program error", KindBusinessRule, "❌ PROGRAM ERROR - DEX rejected the swap", "check token liquidity"},
	{"0x1", KindBusinessRule, "❌ INSUFFICIENT FUNDS IN POOL", "token may have low liquidity"},

	{"connection refused", KindTransient, "❌ RPC CONNECTION FAILED", "check network connectivity"},
	{"timeout", KindTransient, "⚠️ RPC TIMEOUT - network slow", "retry"},

	{"simulation failed", KindValidation, "❌ SIMULATION FAILED - transaction would fail on-chain", "check logs for specific reason"},
}

// ParseTxError classifies err against txErrorRules, falling back to an
// unclassified, fatal "transaction failed" result.
func ParseTxError(err error) *TxError {
	if err == nil {
		return nil
	}

	raw := err.Error()
	txErr := &TxError{Raw: raw, Kind: KindUnknown}
	if rpcErr, ok := err.(*RPCError); ok {
		txErr.Code = rpcErr.Code
	}

	lower := strings.ToLower(raw)
	for _, rule := range txErrorRules {
		if strings.Contains(lower, strings.ToLower(rule.match)) {
			txErr.Kind = rule.kind
			txErr.Message = rule.message
			txErr.Action = rule.action
			return txErr
		}
	}

	txErr.Kind = KindFatal
	txErr.Message = "❌ TRANSACTION FAILED"
	txErr.Action = "check raw error"
	return txErr
}

// HumanError returns a human-readable error string.
func HumanError(err error) string {
	if err == nil {
		return ""
	}
	return ParseTxError(err).Message
}

// HumanErrorWithAction returns the error plus its suggested action.
func HumanErrorWithAction(err error) string {
	if err == nil {
		return ""
	}
	txErr := ParseTxError(err)
	return txErr.Message + " → " + txErr.Action
}
