package domain

// OutcomeKind is the terminal state of one delivery.
type OutcomeKind string

const (
	OutcomeApplied          OutcomeKind = "applied"
	OutcomeDuplicate        OutcomeKind = "duplicate"
	OutcomeSkipped          OutcomeKind = "skipped"
	OutcomeRejected         OutcomeKind = "rejected"
	OutcomeInvalid          OutcomeKind = "invalid"
	OutcomeTechnicalFailure OutcomeKind = "technical_failure"
)

// Outcome is what the consumer reports back to the transport.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func Applied() Outcome { return Outcome{Kind: OutcomeApplied} }

func Duplicate(reason string) Outcome { return Outcome{Kind: OutcomeDuplicate, Reason: reason} }

func Skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }

func Rejected(err error) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: err.Error(), Err: err}
}

func Invalid(err error) Outcome {
	return Outcome{Kind: OutcomeInvalid, Reason: err.Error(), Err: err}
}

func TechnicalFailure(err error) Outcome {
	return Outcome{Kind: OutcomeTechnicalFailure, Reason: err.Error(), Err: err}
}

// Success covers applied deliveries and benign no-ops.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeApplied || o.Kind == OutcomeDuplicate || o.Kind == OutcomeSkipped
}

// Retry reports whether the transport must redeliver the message.
func (o Outcome) Retry() bool {
	return o.Kind == OutcomeTechnicalFailure
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return string(o.Kind) + ": " + o.Reason
}
