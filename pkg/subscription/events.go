package subscription

// Events carries optional lifecycle callbacks for single operations. The
// callbacks belong to the caller; there is no global event bus. A nil
// callback is simply skipped.
//
// Callbacks are invoked synchronously from the operation's goroutine, so
// batched operations may invoke them concurrently; implementations must be
// safe for that.
type Events struct {
	// Starting fires before the request for a subscription is issued.
	Starting func(subID uint64)

	// Succeeded fires after the operation completed.
	Succeeded func(subID uint64)

	// Failed fires when the operation failed, with the failure message.
	Failed func(subID uint64, msg string)
}

func (e Events) starting(subID uint64) {
	if e.Starting != nil {
		e.Starting(subID)
	}
}

func (e Events) succeeded(subID uint64) {
	if e.Succeeded != nil {
		e.Succeeded(subID)
	}
}

func (e Events) failed(subID uint64, msg string) {
	if e.Failed != nil {
		e.Failed(subID, msg)
	}
}
