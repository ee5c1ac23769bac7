package core

import "time"

// SyncPlan is the batch of store operations produced by one reconciliation
// pass. It is built entirely from in-memory data so the store lock is never
// held while Sage is being read.
type SyncPlan struct {
	Inserts []Invoice
	Updates []Invoice
}

// BuildSyncPlan classifies freshly read headers against the set of
// transaction keys already present in the local store. Updates carry only
// ledger-derived fields; the store layer never writes lifecycle columns
// from a sync.
func BuildSyncPlan(headers []SourceHeader, existing map[int64]bool, now time.Time) SyncPlan {
	var plan SyncPlan
	for _, h := range headers {
		inv := Invoice{
			TrxNumber:       h.TrxNumber,
			InvoiceNum:      h.InvoiceNum,
			CustomerID:      h.CustomerID,
			CustomerName:    h.CustomerName,
			CustomerTIN:     h.CustomerTIN,
			CustomerEmail:   h.CustomerEmail,
			CustomerPhone:   h.CustomerPhone,
			CustomerAddress: h.CustomerAddress,
			CustomerCity:    h.CustomerCity,
			InvoiceDate:     h.Date,
			Amount:          h.Amount,
			Description:     h.Description,
			Status:          StatusPending,
			LastSynced:      now,
		}
		if existing[h.TrxNumber] {
			plan.Updates = append(plan.Updates, inv)
		} else {
			plan.Inserts = append(plan.Inserts, inv)
		}
	}
	return plan
}

// DefaultSyncRange returns the first through last calendar day of the month
// containing now, the range used when the caller gives no explicit bounds.
func DefaultSyncRange(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, -1)
	return from, to
}
