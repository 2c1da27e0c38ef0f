// Package submissions accepts guest posts for a wall and runs the
// moderation queue.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entities"
	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/pkg/storage"
)

var (
	// ErrInvalidPhoto is returned for an oversized or unsupported photo.
	ErrInvalidPhoto = errors.New("invalid photo")
	// ErrInvalidSubmission is returned when the post has no content or
	// exceeds the field limits.
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Field limits for guest posts.
const (
	MaxNickname = 40
	MaxMessage  = 280
)

// Photo is an uploaded guest photo.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Post is a guest submission.
type Post struct {
	Nickname string
	Message  string
	Photo    *Photo
}

// Owner resolves an entity owned by the caller.
type Owner interface {
	Get(ctx context.Context, k entity.Kind, a entities.Actor, id string) (remote.Row, error)
}

// Service stores submissions and moderates them.
type Service struct {
	remote remote.Service
	owner  Owner
	bucket string
	logger *zap.Logger
}

// NewService creates a submissions service. Photos are stored in bucket.
func NewService(svc remote.Service, owner Owner, bucket string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{remote: svc, owner: owner, bucket: bucket, logger: logger}
}

// Submit stores a pending post for the wall. Approval is what puts it on
// screen.
func (s *Service) Submit(ctx context.Context, eventID string, p Post) (remote.Row, error) {
	nickname := strings.TrimSpace(p.Nickname)
	message := strings.TrimSpace(p.Message)
	if utf8.RuneCountInString(nickname) > MaxNickname || utf8.RuneCountInString(message) > MaxMessage {
		return nil, fmt.Errorf("%w: field too long", ErrInvalidSubmission)
	}
	if message == "" && p.Photo == nil {
		return nil, fmt.Errorf("%w: message or photo required", ErrInvalidSubmission)
	}
	if _, err := s.remote.Get(ctx, entity.Wall.Table, eventID); err != nil {
		return nil, fmt.Errorf("get wall: %w", err)
	}
	if nickname == "" {
		nickname = "Guest"
	}

	row := remote.Row{
		"event_id": eventID,
		"nickname": nickname,
		"message":  message,
		"status":   models.ItemPending,
	}
	if p.Photo != nil {
		key, url, err := s.upload(ctx, eventID, p.Photo)
		if err != nil {
			return nil, err
		}
		row["photo_path"] = key
		row["photo_url"] = url
	}
	created, err := s.remote.Insert(ctx, entity.Wall.ItemTable, row)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	s.logger.Info("submission received", zap.String("entity_id", eventID), zap.String("submission_id", created.ID()), zap.Bool("photo", p.Photo != nil))
	s.refreshPending(ctx, eventID)
	return created, nil
}

func (s *Service) upload(ctx context.Context, eventID string, ph *Photo) (string, string, error) {
	if ph.Size <= 0 || ph.Size > storage.MaxPhotoSize {
		return "", "", fmt.Errorf("%w: size %d", ErrInvalidPhoto, ph.Size)
	}
	if !storage.ValidatePhotoType(ph.ContentType, ph.Filename) {
		return "", "", fmt.Errorf("%w: type %q", ErrInvalidPhoto, ph.ContentType)
	}
	ext := storage.ExtensionFor(ph.ContentType, ph.Filename)
	ct := storage.AllowedPhotoExtensions[ext]
	key := storage.SubmissionKey(eventID, ext)
	if err := s.remote.Upload(ctx, s.bucket, key, ct, ph.Body, ph.Size); err != nil {
		return "", "", fmt.Errorf("upload photo: %w", err)
	}
	return key, s.remote.PublicURL(s.bucket, key), nil
}

// Pending lists the wall's pending submissions, oldest first.
func (s *Service) Pending(ctx context.Context, a entities.Actor, eventID string) ([]remote.Row, error) {
	if _, err := s.owner.Get(ctx, entity.Wall, a, eventID); err != nil {
		return nil, err
	}
	rows, err := s.remote.List(ctx, entity.Wall.ItemTable, remote.Query{
		Where:   []remote.Filter{remote.Eq("event_id", eventID), remote.Eq("status", models.ItemPending)},
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return rows, nil
}

// Approve puts a submission on every open display via the change feed.
func (s *Service) Approve(ctx context.Context, a entities.Actor, id string) (remote.Row, error) {
	return s.moderate(ctx, a, id, models.ItemApproved)
}

// Reject hides a submission.
func (s *Service) Reject(ctx context.Context, a entities.Actor, id string) (remote.Row, error) {
	return s.moderate(ctx, a, id, models.ItemRejected)
}

func (s *Service) moderate(ctx context.Context, a entities.Actor, id, status string) (remote.Row, error) {
	sub, err := s.remote.Get(ctx, entity.Wall.ItemTable, id)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	eventID := models.ItemFromRow(sub, entity.Wall.ParentColumn).ParentID
	if _, err := s.owner.Get(ctx, entity.Wall, a, eventID); err != nil {
		return nil, err
	}
	row, err := s.remote.Update(ctx, entity.Wall.ItemTable, id, remote.Row{"status": status})
	if err != nil {
		return nil, fmt.Errorf("moderate submission: %w", err)
	}
	s.logger.Info("submission moderated", zap.String("entity_id", eventID), zap.String("submission_id", id), zap.String("status", status))
	s.refreshPending(ctx, eventID)
	return row, nil
}

// refreshPending recounts the wall's pending posts for the dashboard badge.
func (s *Service) refreshPending(ctx context.Context, eventID string) {
	rows, err := s.remote.List(ctx, entity.Wall.ItemTable, remote.Query{
		Where: []remote.Filter{remote.Eq("event_id", eventID), remote.Eq("status", models.ItemPending)},
	})
	if err == nil {
		_, err = s.remote.Update(ctx, entity.Wall.Table, eventID, remote.Row{"pending_posts": len(rows)})
	}
	if err != nil {
		s.logger.Warn("failed to refresh pending count", zap.String("entity_id", eventID), zap.Error(err))
	}
}
