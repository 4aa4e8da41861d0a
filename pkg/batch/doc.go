// Package batch fans an operation out over a list of identifiers and collects
// a per-identifier outcome, so one failing item never aborts the rest.
//
// Every identifier is dispatched concurrently and the result slice is built
// positionally: result item i always corresponds to input id i, regardless of
// completion order. The aggregate counts satisfy
//
//	SuccessCount + FailureCount == len(Items) == len(ids)
//
// Example usage:
//
//	res := batch.Run(ctx, subIDs, func(ctx context.Context, id uint64) (Receipt, error) {
//		return svc.Renew(ctx, id)
//	}, batch.WithLimit(10))
//	fmt.Printf("%d ok, %d failed\n", res.SuccessCount, res.FailureCount)
//
// Run never returns an error itself: item-level failures, including panics
// inside the operation, are captured into the corresponding result item.
package batch
