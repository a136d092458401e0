package store

import (
	"github.com/oklog/ulid/v2"
)

// Id tags prefix every generated record id.
const (
	TagHousehold         = "hh"
	TagSubsidyContract   = "sc"
	TagSubsidyProgram    = "sp"
	TagOtherPayer        = "op"
	TagPaymentGroup      = "pg"
	TagOngoingCharge     = "hhco"
	TagCharge            = "hhc"
	TagPayment           = "hhp"
	TagPaymentAllocation = "hhpa"
	TagBillingRun        = "run"
)

// NewID returns a fresh id of the form "<tag>-<ULID>". Ids made by one process
// sort in creation order.
func NewID(tag string) string {
	return tag + "-" + ulid.Make().String()
}
