package model

import "fmt"

// Outcome classifies one remote API response.
type Outcome int

const (
	OutcomeAccepted Outcome = iota + 1
	OutcomeDuplicate
	OutcomeFiltered
	OutcomeRejected
	OutcomeTransientError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Sent reports whether the server now holds the event.
func (o Outcome) Sent() bool {
	return o == OutcomeAccepted || o == OutcomeDuplicate
}

// Result is the message a dispatch unit of work posts back to the consumer.
type Result struct {
	Event      Event
	Outcome    Outcome
	Reason     string // populated for Rejected and TransientError
	APIID      string
	Body       string // raw response body, truncated
	StatusCode int
	Attempts   int
	BatchID    string // empty on the live path
}
