package multiagent

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'` + "`" + `]+`)

// Match is the best intent found for an utterance.
type Match struct {
	Intent domain.Intent
	// Phrase is the matched keyword phrase; Score is its length in words.
	Phrase string
	Score  int
}

type routeEntry struct {
	intent  domain.Intent
	phrases [][]string
}

// Router maps utterances to intents. An intent scores the length, in words,
// of its longest keyword phrase found as a contiguous word sequence in the
// utterance. The highest score wins; ties go to the higher priority, then
// to the intent declared first.
type Router struct {
	entries []routeEntry
}

// NewRouter builds a router over intents in declaration order.
func NewRouter(intents []domain.Intent) *Router {
	r := &Router{entries: make([]routeEntry, 0, len(intents))}
	for _, in := range intents {
		e := routeEntry{intent: in}
		for _, kw := range in.Keywords {
			if words := Tokenize(kw); len(words) > 0 {
				e.phrases = append(e.phrases, words)
			}
		}
		r.entries = append(r.entries, e)
	}
	return r
}

// Classify returns the winning intent, or false when no keyword matches.
// URLs are ignored for matching.
func (r *Router) Classify(utterance string) (Match, bool) {
	words := Tokenize(urlPattern.ReplaceAllString(utterance, " "))
	if len(words) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, e := range r.entries {
		score, phrase := 0, ""
		for _, p := range e.phrases {
			if len(p) > score && containsPhrase(words, p) {
				score, phrase = len(p), strings.Join(p, " ")
			}
		}
		if score == 0 {
			continue
		}
		if !found || score > best.Score || (score == best.Score && e.intent.Priority > best.Intent.Priority) {
			best = Match{Intent: e.intent, Phrase: phrase, Score: score}
			found = true
		}
	}
	return best, found
}

// Tokenize lowercases s and splits it on every non-alphanumeric rune.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, w := range phrase {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ExtractRepoURL returns the first http(s) URL in the utterance that
// points at a repository (host plus at least owner/name), or "".
func ExtractRepoURL(utterance string) string {
	for _, raw := range urlPattern.FindAllString(utterance, -1) {
		raw = strings.TrimRight(raw, ".,;:!?)]}")
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(segments) >= 2 {
			return raw
		}
	}
	return ""
}

// SameRepository compares repository URLs ignoring case, a trailing slash
// and a .git suffix.
func SameRepository(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimSuffix(s, "/")
		return strings.TrimSuffix(s, ".git")
	}
	return norm(a) == norm(b)
}
