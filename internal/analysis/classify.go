package analysis

// Diagnosis is the label assigned to a recording.
type Diagnosis string

const (
	// Stammering is assigned when the zero-crossing rate exceeds
	// [StammeringThreshold].
	Stammering Diagnosis = "Stammering"

	// Normal is assigned otherwise.
	Normal Diagnosis = "Normal"
)

// StammeringThreshold is the zero-crossing rate above which a recording is
// labelled [Stammering]. A rate equal to the threshold is [Normal].
const StammeringThreshold = 0.07

// Classify maps an average zero-crossing rate to a [Diagnosis].
func Classify(zcr float64) Diagnosis {
	if zcr > StammeringThreshold {
		return Stammering
	}
	return Normal
}

// String implements [fmt.Stringer].
func (d Diagnosis) String() string { return string(d) }
