package sequencer

type Outcome string

const (
	// OutcomeSkipped: the link vanished, left active, or its lead is gone.
	OutcomeSkipped    Outcome = "skipped"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeCompleted  Outcome = "completed"
	// OutcomeDeferred: no account had capacity; nothing changed.
	OutcomeDeferred Outcome = "deferred"
	OutcomeSent     Outcome = "sent"
	OutcomeBounced  Outcome = "bounced"
	// OutcomeFailed is a transient send failure; the link stays due.
	OutcomeFailed Outcome = "failed"
)

// Result describes what one dispatch did.
type Result struct {
	Outcome      Outcome
	CampaignID   int64
	TenantID     int64
	LeadID       int64
	AccountID    int64
	Step         int
	VariantIndex int
	MessageID    string
	Strategy     string
	// Finished is set on a successful send of the last step.
	Finished bool
	Err      error
}
