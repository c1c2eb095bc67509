package poller

import (
	"bondwatch/internal/ledger"
)

// OperationTypePayment is the ledger operation type treated as a
// withdrawal candidate.
const OperationTypePayment = "payment"

// Filter decides whether a raw ledger operation qualifies as a withdrawal.
// Pluggable: the default below is a conservative placeholder, not a
// business rule, and deployments are expected to swap in a stronger one.
type Filter func(op ledger.OperationRecord) bool

// BondIDFunc derives the bond identifier a qualifying operation applies to.
type BondIDFunc func(op ledger.OperationRecord) string

// DefaultFilter accepts payment-type operations. When sourceAccount is
// non-empty, only payments originating from that account qualify;
// otherwise every payment is a candidate.
func DefaultFilter(sourceAccount string) Filter {
	return func(op ledger.OperationRecord) bool {
		if op.Type != OperationTypePayment {
			return false
		}
		if sourceAccount == "" {
			return true
		}
		return operationAccount(op) == sourceAccount
	}
}

// DefaultBondID maps an operation to one bond per originating account.
func DefaultBondID(op ledger.OperationRecord) string {
	return "bond-" + operationAccount(op)
}

func operationAccount(op ledger.OperationRecord) string {
	if op.SourceAccount != "" {
		return op.SourceAccount
	}
	return op.From
}
