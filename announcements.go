package auth

import (
	"context"
	"strings"
	"time"
)

// DefaultAnnouncementTitle is used for broadcasts issued from the command line
const DefaultAnnouncementTitle = "Announcement"

// BroadcastRequest describes a new announcement
type BroadcastRequest struct {
	Title     string
	Content   string
	ExpiresAt *time.Time
}

// Broadcast creates an active announcement authored by actor.
// An empty title or content is rejected with ErrInvalidArgument.
func (s *AdminService) Broadcast(ctx context.Context, actor *Account, req BroadcastRequest) (*Announcement, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return nil, invalidArgument("title and content are required", nil)
	}

	record, err := s.repo.Announcements().Create(ctx, &Announcement{
		Title:     title,
		Content:   content,
		CreatedBy: actor.ID,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventAnnouncementCreated,
		Actor:     ActorFromAccount(actor),
		Metadata: map[string]any{
			"announcement_id": record.ID,
			"title":           record.Title,
		},
	})

	return record, nil
}

// ActiveAnnouncements is the public read of the visible set
func (s *AdminService) ActiveAnnouncements(ctx context.Context) ([]*Announcement, error) {
	return s.repo.Announcements().Active(ctx, s.now())
}

// DeactivateAnnouncement hides an announcement from reads. The row is kept.
func (s *AdminService) DeactivateAnnouncement(ctx context.Context, actor *Account, id int64) (*Announcement, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	record, err := s.repo.Announcements().Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventAnnouncementDeactivate,
		Actor:     ActorFromAccount(actor),
		Metadata:  map[string]any{"announcement_id": id},
	})

	return record, nil
}
