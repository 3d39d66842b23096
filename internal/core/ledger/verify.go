package ledger

import (
	"context"
	"fmt"
)

// VerifyResult is the outcome of a chain verification.
type VerifyResult struct {
	Valid           bool   `json:"valid"`
	EntriesVerified int    `json:"entriesVerified"`
	BrokenAtSeq     int64  `json:"brokenAtSeq,omitempty"`
	ExpectedHash    string `json:"expectedHash,omitempty"`
	ActualHash      string `json:"actualHash,omitempty"`
	Message         string `json:"message"`
}

// VerifyChain walks the account chain over the optional [fromSeq, toSeq]
// window and checks both the recomputed entry hashes and the prev-hash links.
// fromSeq <= 0 means from the start; toSeq <= 0 means to the tip.
func (e *Engine) VerifyChain(ctx context.Context, entries EntryStore, accountID string, fromSeq, toSeq int64) (*VerifyResult, error) {
	if fromSeq <= 0 {
		fromSeq = 1
	}

	// Bootstrap the expected previous hash from the entry just before the
	// window, so a partial window still checks its first link.
	var expectedPrev string
	if fromSeq > 1 {
		prev, err := entries.GetBySeq(ctx, accountID, fromSeq-1)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			expectedPrev = prev.EntryHash
		}
	}

	window, err := entries.ListRange(ctx, accountID, fromSeq, toSeq)
	if err != nil {
		return nil, err
	}

	for _, entry := range window {
		expectedHash := HashInputOf(entry).Hash()
		if expectedHash != entry.EntryHash {
			return &VerifyResult{
				Valid:        false,
				BrokenAtSeq:  entry.WalletSeq,
				ExpectedHash: expectedHash,
				ActualHash:   entry.EntryHash,
				Message:      fmt.Sprintf("Chain broken at sequence %d", entry.WalletSeq),
			}, nil
		}

		if entry.PrevHash != expectedPrev {
			return &VerifyResult{
				Valid:        false,
				BrokenAtSeq:  entry.WalletSeq,
				ExpectedHash: expectedPrev,
				ActualHash:   entry.PrevHash,
				Message:      fmt.Sprintf("Previous hash mismatch at sequence %d", entry.WalletSeq),
			}, nil
		}

		expectedPrev = entry.EntryHash
	}

	return &VerifyResult{
		Valid:           true,
		EntriesVerified: len(window),
		Message:         "Chain integrity verified",
	}, nil
}
