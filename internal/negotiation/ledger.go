// internal/negotiation/ledger.go
package negotiation

// CheckAppend guards the append-only ordering invariant: a new entry's
// timestamp must not precede the last recorded one. Entries may share a
// timestamp (clock granularity), order within the ledger is by insertion.
func CheckAppend(last *Entry, next Entry) error {
	if last == nil {
		return nil
	}
	if next.At.Before(last.At) {
		return &OutOfOrderError{Last: last.At.UnixNano(), Attempted: next.At.UnixNano()}
	}
	return nil
}

// Replay folds a full ledger from the initial state and returns the resulting
// status and active quote. Re-applying the transition rules over the history
// must reconstruct exactly the status and quote cached on the record; reads
// and audits share this one definition of "current quote".
func Replay(entries []Entry) (Status, *Quote, error) {
	state := StatusPending
	var quote *Quote
	var last *Entry

	for i := range entries {
		e := entries[i]
		if err := CheckAppend(last, e); err != nil {
			return state, quote, err
		}

		next, err := Apply(state, quote, e)
		if err != nil {
			return state, quote, err
		}

		if e.Action == ActionQuote || e.Action == ActionCounterOffer {
			quote = &Quote{
				Amount:     *e.Amount,
				Message:    e.Message,
				ProposedBy: e.Actor,
				At:         e.At,
			}
		}

		state = next
		last = &entries[i]
	}

	return state, quote, nil
}
