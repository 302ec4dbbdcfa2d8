package usecase

import (
	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// perMessageOverhead approximates the role and framing tokens of a message.
const perMessageOverhead = 4

// HistoryMessages converts stored turns into oracle messages, keeping the
// most recent turns that fit in budget tokens. A budget <= 0 keeps
// everything. The newest turn is always kept.
func HistoryMessages(turns []domain.Turn, budget int, counter *TokenCounter) []domain.Message {
	if len(turns) == 0 {
		return nil
	}
	start := 0
	if budget > 0 {
		used := 0
		start = len(turns)
		for i := len(turns) - 1; i >= 0; i-- {
			cost := counter.Count(turns[i].Text) + perMessageOverhead
			if used+cost > budget && start < len(turns) {
				break
			}
			used += cost
			start = i
		}
	}

	msgs := make([]domain.Message, 0, len(turns)-start)
	for _, t := range turns[start:] {
		role := domain.RoleUser
		if t.Speaker == domain.SpeakerAssistant {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, domain.Message{Role: role, Content: t.Text, Timestamp: t.Timestamp})
	}
	return msgs
}
