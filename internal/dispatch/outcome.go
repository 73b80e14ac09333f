package dispatch

import (
	"fmt"
	"time"
)

// Outcome is the terminal result of processing one candidate in a cycle.
// Races and skips are ordinary outcomes, not errors.
type Outcome int

const (
	OutcomeDelivered          Outcome = iota + 1 // claimed and sent
	OutcomeSkippedRace                           // another worker claimed it first
	OutcomeSkippedOutOfWindow                    // lead time drifted out of tolerance; never claimed
	OutcomeFailedClaim                           // claim call errored; block left pending
	OutcomeFailedRolledBack                      // send failed, claim reverted
	OutcomeFailedPermanent                       // send failed and rollback failed; block stays flagged
)

var outcomeNames = map[Outcome]string{
	OutcomeDelivered:          "delivered",
	OutcomeSkippedRace:        "skipped_race",
	OutcomeSkippedOutOfWindow: "skipped_out_of_window",
	OutcomeFailedClaim:        "failed_claim",
	OutcomeFailedRolledBack:   "failed_rolled_back",
	OutcomeFailedPermanent:    "failed_permanent",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Skipped reports whether the block was left alone without a failure.
func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedRace || o == OutcomeSkippedOutOfWindow
}

// Failed reports whether processing hit an error.
func (o Outcome) Failed() bool {
	return o == OutcomeFailedClaim || o == OutcomeFailedRolledBack || o == OutcomeFailedPermanent
}

// Status is the terminal status of a whole cycle.
type Status int

const (
	StatusSuccess Status = iota + 1
	StatusNoWork
	StatusFetchError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoWork:
		return "no_work"
	case StatusFetchError:
		return "fetch_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Report summarizes one dispatch cycle.
type Report struct {
	Status      Status          `json:"status"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Processed   int             `json:"processed"`
	Delivered   int             `json:"delivered"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	Outcomes    map[Outcome]int `json:"outcomes,omitempty"`
	Duration    time.Duration   `json:"duration_ns"`
}

func (r *Report) add(o Outcome) {
	if r.Outcomes == nil {
		r.Outcomes = make(map[Outcome]int)
	}
	r.Outcomes[o]++
	r.Processed++
	switch {
	case o == OutcomeDelivered:
		r.Delivered++
	case o.Skipped():
		r.Skipped++
	case o.Failed():
		r.Failed++
	}
}
