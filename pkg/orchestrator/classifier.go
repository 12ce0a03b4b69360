package orchestrator

import (
	"regexp"
	"strings"
)

// ReplyClass is how a free-text user reply reads against a pending plan.
type ReplyClass string

const (
	ReplyConfirmation ReplyClass = "confirmation"
	ReplyRejection    ReplyClass = "rejection"
	ReplyModification ReplyClass = "modification"
	ReplyAmbiguous    ReplyClass = "ambiguous"
)

var (
	confirmWords = []string{
		"yes", "y", "yeah", "yep", "confirm", "confirmed", "ok", "okay",
		"sure", "proceed", "correct", "go ahead", "do it", "sounds good",
	}
	rejectWords = []string{
		"no", "n", "nope", "cancel", "stop", "abort", "nevermind",
		"never mind", "forget it", "don't",
	}
	modifyWords = []string{
		"change", "modify", "update", "instead", "actually", "edit",
		"different", "rather", "wait",
	}
)

var wordRe = map[string]*regexp.Regexp{}

func init() {
	for _, w := range append(append(append([]string{}, confirmWords...), rejectWords...), modifyWords...) {
		wordRe[w] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
}

func matchesAny(text string, words []string) bool {
	for _, w := range words {
		if wordRe[w].MatchString(text) {
			return true
		}
	}
	return false
}

// ClassifyReply reads a free-text reply as confirmation, rejection, or a
// modification request. Matching is word-boundary based; a reply that reads
// both ways is ambiguous, and ambiguity never advances the state machine.
func ClassifyReply(text string) ReplyClass {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReplyAmbiguous
	}

	confirmed := matchesAny(text, confirmWords)
	rejected := matchesAny(text, rejectWords)

	switch {
	case confirmed && rejected:
		return ReplyAmbiguous
	case rejected:
		return ReplyRejection
	case confirmed:
		return ReplyConfirmation
	case matchesAny(text, modifyWords):
		return ReplyModification
	default:
		return ReplyAmbiguous
	}
}
