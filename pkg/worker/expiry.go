package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/metrics"
)

// ExpiryWorker periodically flips overdue pending invitations to expired.
// Expiry is also detected lazily on accept, so the sweeper only keeps the
// stored state tidy for listings.
type ExpiryWorker struct {
	store    database.StoreInterface
	interval time.Duration
}

func NewExpiryWorker(store database.StoreInterface, interval time.Duration) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		store:    store,
		interval: interval,
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	fmt.Printf("invitation expiry worker started (interval %s)\n", w.interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("invitation expiry worker stopped\n")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ExpiryWorker) sweep() {
	count, err := w.store.ExpireOverduePending(time.Now())
	if err != nil {
		fmt.Printf("[warn] invitation expiry sweep failed: %v\n", err)
		return
	}
	if count > 0 {
		fmt.Printf("invitation expiry sweep: %d invitation(s) expired\n", count)
		metrics.ObserveInvitationsExpired(count)
	}
}
