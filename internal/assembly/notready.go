package assembly

// NotReadyError marks the expected "content not generated yet" condition: the
// story has no scenes, or some scene has no image. It is a tagged type so
// callers branch with errors.As instead of matching message substrings. The
// fulfillment orchestrator reports it as success-with-wait, never as failure.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string {
	return "story not ready: " + e.Reason
}
