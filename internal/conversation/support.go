package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/xenking/shopbot/internal/chat"
)

type supportStage uint8

const (
	supportSubject supportStage = iota + 1
	supportMessage
)

type supportDraft struct {
	stage   supportStage
	subject string
}

// supportDrafts holds in-progress support requests per user.
type supportDrafts struct {
	mu     sync.Mutex
	drafts map[int64]supportDraft
}

func newSupportDrafts() *supportDrafts {
	return &supportDrafts{drafts: make(map[int64]supportDraft)}
}

func (s *supportDrafts) get(user int64) (supportDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[user]
	return d, ok
}

func (s *supportDrafts) set(user int64, d supportDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[user] = d
}

func (s *supportDrafts) clear(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, user)
}

const (
	subjectRule = "min=3,max=100"
	messageRule = "min=10,max=1000"
)

func (s *Service) beginSupport(ev Event) []chat.Reply {
	s.sessions.Reset(ev.User.ID)
	s.support.set(ev.User.ID, supportDraft{stage: supportSubject})
	return []chat.Reply{edit(supportSubjectView())}
}

func (s *Service) cancelSupport(ev Event) []chat.Reply {
	s.support.clear(ev.User.ID)
	return []chat.Reply{edit(supportCancelledView())}
}

// supportText advances the support flow with the user's answer. Lengths are
// counted in characters after trimming.
func (s *Service) supportText(ctx context.Context, ev Event, d supportDraft) []chat.Reply {
	text := strings.TrimSpace(ev.Text)

	switch d.stage {
	case supportSubject:
		if err := s.validate.Var(text, subjectRule); err != nil {
			return []chat.Reply{send(supportInvalidView("Subject", 3, 100))}
		}
		s.support.set(ev.User.ID, supportDraft{stage: supportMessage, subject: text})
		return []chat.Reply{send(supportMessageView(text))}

	default:
		if err := s.validate.Var(text, messageRule); err != nil {
			return []chat.Reply{send(supportInvalidView("Message", 10, 1000))}
		}
		s.support.clear(ev.User.ID)
		r := s.operators.SupportRequest(ctx, ev.User, d.subject, text)
		if r.Delivered == 0 {
			return []chat.Reply{send(supportFailedView())}
		}
		return []chat.Reply{send(supportSentView(d.subject, text))}
	}
}
