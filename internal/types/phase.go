package types

// Advance merges a newly observed job status into the previously stored one.
// It returns the status to store and the status to expose to callers.
//
// Phases only move forward. A regression keeps and exposes the stored
// status. A terminal status contradicting an earlier, different terminal
// status leaves the stored status alone and is exposed as processing.
func Advance(prev *TranscodingJob, observed TranscodingJob) (stored, exposed TranscodingJob) {
	if prev == nil || prev.Phase == "" {
		return observed, observed
	}

	if prev.Phase.Terminal() {
		switch {
		case observed.Phase == prev.Phase:
			return *prev, *prev
		case observed.Phase.Terminal():
			return *prev, TranscodingJob{ExternalJobID: prev.ExternalJobID, Phase: PhaseProcessing}
		default:
			return *prev, *prev
		}
	}

	if observed.Phase.Rank() < prev.Phase.Rank() {
		return *prev, *prev
	}
	return observed, observed
}
