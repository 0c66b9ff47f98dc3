package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// contextEvent is one line of conversation history fed to the classifier.
// Source orders events with equal timestamps deterministically.
type contextEvent struct {
	At     time.Time
	Source int // 0 = message, 1 = image observation
	Seq    int64
	Text   string
}

// ContextService assembles the classifier's view of a session: user
// messages, assistant actions, form answers and image analyses merged
// into one time-ordered transcript.
type ContextService struct {
	db     core.DbClient
	window int
}

func NewContextService(db core.DbClient, window int) *ContextService {
	if window <= 0 {
		window = 30
	}
	return &ContextService{db: db, window: window}
}

// Aggregate returns the most recent events for a session, oldest first.
// Ties on timestamp break by source then by insertion sequence, so the
// result is identical regardless of which table is queried first.
func (s *ContextService) Aggregate(ctx context.Context, sessionID string) ([]string, error) {
	msgs, err := s.db.ListMessagesBySession(ctx, sessionID, 0, 0)
	if err != nil {
		return nil, err
	}
	images, err := s.db.ListImagesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events := make([]contextEvent, 0, len(msgs)+len(images))
	for _, m := range msgs {
		for _, text := range renderMessage(m) {
			events = append(events, contextEvent{At: m.CreatedAt, Source: 0, Seq: m.Seq, Text: text})
		}
	}
	for _, img := range images {
		if img.Description == "" {
			continue
		}
		events = append(events, contextEvent{
			At:     img.CreatedAt,
			Source: 1,
			Seq:    img.Seq,
			Text:   renderImage(img),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		if events[i].Source != events[j].Source {
			return events[i].Source < events[j].Source
		}
		return events[i].Seq < events[j].Seq
	})

	if len(events) > s.window {
		events = events[len(events)-s.window:]
	}

	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Text
	}
	return out, nil
}

// renderMessage turns one transcript row into zero or more event lines.
// A user message that answers a form renders as the form answer, not as
// free text; a dismissed form renders as a dismissal note.
func renderMessage(m models.Message) []string {
	var lines []string

	switch m.Role {
	case models.RoleUser:
		if sub := m.Metadata.FormSubmission; sub != nil {
			switch sub.Status {
			case models.FormDismissed:
				lines = append(lines, "User: (dismissed the follow-up question)")
			default:
				lines = append(lines, fmt.Sprintf("User answered follow-up: %s", sub.Value))
			}
			if m.Content != "" {
				lines = append(lines, "User: "+m.Content)
			}
			return lines
		}
		if m.Content != "" {
			lines = append(lines, "User: "+m.Content)
		}
	case models.RoleAssistant:
		if m.Content != "" {
			lines = append(lines, "Assistant: "+m.Content)
		}
		if len(m.Metadata.SuggestedActions) > 0 {
			lines = append(lines, "Assistant suggested: "+strings.Join(m.Metadata.SuggestedActions, "; "))
		}
		if f := m.Metadata.FollowUpForm; f != nil {
			lines = append(lines, fmt.Sprintf("Assistant asked (%s): %s", f.Kind, f.Question))
		}
	}
	return lines
}

func renderImage(img models.ImageObservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Image shows: %s", img.Description)
	if img.Label != "" {
		fmt.Fprintf(&b, " [%s]", img.Label)
	}
	if len(img.Details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(img.Details, ", "))
	}
	return b.String()
}
