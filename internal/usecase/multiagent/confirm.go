package multiagent

import (
	"strings"
	"unicode"
)

// Verdict is the user's decision on the open confirmation gates.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictAmend   Verdict = "amend"
	// VerdictUnclear leaves the gates open and asks again.
	VerdictUnclear Verdict = "unclear"
)

var (
	approveWords = wordSet("yes", "y", "yep", "yeah", "yup", "ok", "okay", "sure", "approve", "approved",
		"confirm", "confirmed", "accept", "accepted", "lgtm", "good", "great", "fine", "perfect", "correct",
		"proceed", "continue", "go", "ahead", "ship", "publish", "agreed", "agree")
	rejectWords = wordSet("no", "n", "nope", "nah", "reject", "rejected", "cancel", "discard", "decline",
		"declined", "drop", "abort", "stop", "skip", "not", "dont", "doesnt", "wont", "cant", "shouldnt")
	fillerWords = wordSet("please", "thanks", "thank", "you", "it", "that", "this", "these", "them", "is",
		"are", "all", "the", "looks", "look", "sounds", "seems", "so", "far", "now", "one", "ones", "do",
		"i", "we", "a", "to", "with", "for", "and", "very", "much")
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// confirmationWords lowercases s and splits it into words, folding
// contractions into one word ("don't" becomes "dont").
func confirmationWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	words := fields[:0]
	for _, f := range fields {
		f = strings.NewReplacer("'", "", "’", "").Replace(f)
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

// InterpretConfirmation classifies a reply to open gates. Approval needs
// at least one approve word and rejection at least one reject word, with
// nothing but filler besides. Any other word makes the reply an amendment
// carrying feedback. A reply of filler alone, or with no words at all, is
// unclear.
func InterpretConfirmation(utterance string) Verdict {
	approve, reject, other := 0, 0, 0
	for _, w := range confirmationWords(utterance) {
		switch {
		case approveWords[w]:
			approve++
		case rejectWords[w]:
			reject++
		case fillerWords[w]:
		default:
			other++
		}
	}
	switch {
	case other > 0:
		return VerdictAmend
	case reject > 0 && approve > 0:
		// "no, go ahead" and the like are not clear either way.
		return VerdictAmend
	case reject > 0:
		return VerdictReject
	case approve > 0:
		return VerdictApprove
	default:
		return VerdictUnclear
	}
}
