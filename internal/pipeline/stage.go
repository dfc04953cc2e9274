package pipeline

import "fmt"

// Stage is a step of the upload pipeline. Stages run strictly in declaration
// order.
type Stage int

const (
	Received Stage = iota
	Stored
	FeaturesExtracted
	Classified
	Persisted
	Charted
	Responded
)

var stageNames = [...]string{
	Received:          "Received",
	Stored:            "Stored",
	FeaturesExtracted: "FeaturesExtracted",
	Classified:        "Classified",
	Persisted:         "Persisted",
	Charted:           "Charted",
	Responded:         "Responded",
}

// String implements [fmt.Stringer].
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports the stage at which a request was aborted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
