package idempotency

import (
	"context"
	"fmt"
	"time"
)

func ExampleManager_CheckAndMarkProcessed() {
	ctx := context.Background()
	manager, _ := NewManager(newMemoryStore(), 7*24*time.Hour)

	for delivery := 1; delivery <= 2; delivery++ {
		seen, _ := manager.CheckAndMarkProcessed(ctx, "aggregation", "order-1:payment.checkout-completed")
		fmt.Printf("delivery %d duplicate=%v\n", delivery, seen)
	}
	// Output:
	// delivery 1 duplicate=false
	// delivery 2 duplicate=true
}
