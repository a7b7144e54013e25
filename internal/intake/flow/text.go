package flow

import "strings"

var (
	yesWords = map[string]bool{"YES": true, "YEA": true, "YUP": true, "1": true}
	noWords  = map[string]bool{"NO": true, "NAH": true, "N": true, "2": true}
)

// YesNo interprets an answer. ok is false when it is neither.
func YesNo(choice string) (yes bool, ok bool) {
	c := strings.ToUpper(strings.TrimSpace(choice))
	switch {
	case yesWords[c]:
		return true, true
	case noWords[c]:
		return false, true
	default:
		return false, false
	}
}

// IngestRetryText is the reply when an attachment could not be stored.
func IngestRetryText(what string) string {
	return "⚠️ There was an error uploading your " + what + ". Please try again."
}

// IngestRetry asks for the attachment again without advancing the flow.
func IngestRetry(what string) Directive {
	return Directive{Text: IngestRetryText(what), Effect: EffectNone, Retry: true}
}

// GenericErrorText is the reply when the turn failed on infrastructure.
const GenericErrorText = "⚠️ We could not process your request right now. Please try again in a moment."

// RestartText is used when a session sits in a routed state without the accumulator it needs.
const RestartText = "⚠️ Your previous request could not be resumed. Reply *0* for the Main Menu and start again."

// MissingAccumulator ends a turn whose accumulator variant is absent.
func MissingAccumulator() Directive {
	return Exit(RestartText, "missing_accumulator")
}
