// Package entities implements the host actions on walls, polls and prize
// wheels: create, settings, start/stop/close, clear, delete and spin.
package entities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/livestate"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/rotation"
	"github.com/faninteract/backend/internal/surface"
	"github.com/faninteract/backend/pkg/queue"
)

var (
	// ErrUnsupported is returned for an action the kind does not have.
	ErrUnsupported = errors.New("action not supported for this kind")
	// ErrForbidden is returned when the entity belongs to another host.
	ErrForbidden = errors.New("entity belongs to another host")
	// ErrInvalidSettings is returned for an unknown or malformed setting.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Default background for new entities.
const (
	DefaultBackgroundType  = "gradient"
	DefaultBackgroundValue = "linear-gradient(135deg, #0d47a1 0%, #1976d2 50%, #42a5f5 100%)"
)

// Purger schedules deletion of uploaded media.
type Purger interface {
	EnqueueMediaPurge(ctx context.Context, payload queue.MediaPurgePayload) error
}

// Actor is the authenticated caller.
type Actor struct {
	HostID string
	Admin  bool
}

// Options configure a Service.
type Options struct {
	PublicBaseURL string
	MediaBucket   string
}

// Service runs host actions against the remote data service.
type Service struct {
	remote remote.Service
	purger Purger
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates the host action service. purger may be nil.
func NewService(svc remote.Service, purger Purger, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{remote: svc, purger: purger, opts: opts, now: time.Now, logger: logger}
}

// QRURL is the guest page encoded in an entity's QR code.
func (s *Service) QRURL(k entity.Kind, id string) string {
	return fmt.Sprintf("%s/%s/%s", s.opts.PublicBaseURL, k.PublicPath, id)
}

// Create inserts a new inactive entity and then stores its QR URL. When the
// second write fails the created row is still returned.
func (s *Service) Create(ctx context.Context, k entity.Kind, a Actor, title string, settings map[string]any) (remote.Row, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title required", ErrInvalidSettings)
	}
	patch, err := s.settingsPatch(k, settings)
	if err != nil {
		return nil, err
	}
	row := remote.Row{
		"host_id":          a.HostID,
		"title":            title,
		"status":           string(models.StatusInactive),
		"countdown_active": false,
		"background_type":  DefaultBackgroundType,
		"background_value": DefaultBackgroundValue,
	}
	if k.Name == entity.Poll.Name {
		row["options"] = []any{}
	}
	for key, v := range patch {
		row[key] = v
	}
	created, err := s.remote.Insert(ctx, k.Table, row)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", k.Name, err)
	}
	id := created.ID()
	withQR, err := s.remote.Update(ctx, k.Table, id, remote.Row{"qr_url": s.QRURL(k, id)})
	if err != nil {
		s.logger.Warn("failed to store qr url", zap.String("kind", k.Name), zap.String("entity_id", id), zap.Error(err))
		return created, nil
	}
	s.logger.Info("entity created", zap.String("kind", k.Name), zap.String("entity_id", id), zap.String("host_id", a.HostID))
	return withQR, nil
}

// List returns the caller's entities, newest first.
func (s *Service) List(ctx context.Context, k entity.Kind, a Actor) ([]remote.Row, error) {
	rows, err := s.remote.List(ctx, k.Table, remote.Query{
		Where:   []remote.Filter{remote.Eq("host_id", a.HostID)},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k.Name, err)
	}
	return rows, nil
}

// Get returns one entity owned by the caller.
func (s *Service) Get(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, error) {
	row, _, err := s.owned(ctx, k, a, id)
	return row, err
}

// UpdateSettings applies whitelisted settings and asks open displays to reload.
func (s *Service) UpdateSettings(ctx context.Context, k entity.Kind, a Actor, id string, settings map[string]any) (remote.Row, error) {
	if _, _, err := s.owned(ctx, k, a, id); err != nil {
		return nil, err
	}
	patch, err := s.settingsPatch(k, settings)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidSettings)
	}
	patch["updated_at"] = s.now().UTC()
	row, err := s.write(ctx, k, id, patch, "update")
	if err != nil {
		return nil, err
	}
	s.reload(ctx, k, id)
	return row, nil
}

// Start arms the countdown when one is configured, otherwise goes live.
func (s *Service) Start(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, error) {
	_, e, err := s.owned(ctx, k, a, id)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, k, id, entity.StartPatch(e, s.now()), "start")
}

// Stop returns the entity to inactive and cancels any countdown.
func (s *Service) Stop(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, error) {
	if _, _, err := s.owned(ctx, k, a, id); err != nil {
		return nil, err
	}
	return s.write(ctx, k, id, entity.StopPatch(s.now()), "stop")
}

// Close ends voting on a poll; the results stay on screen.
func (s *Service) Close(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, error) {
	if !k.SupportsClosed {
		return nil, ErrUnsupported
	}
	if _, _, err := s.owned(ctx, k, a, id); err != nil {
		return nil, err
	}
	return s.write(ctx, k, id, entity.ClosePatch(s.now()), "close")
}

// Clear removes dependent items. The two writes are not atomic: a failure
// after the delete leaves counters stale until the next clear. Prize wheels
// have nothing to clear.
func (s *Service) Clear(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, error) {
	row, e, err := s.owned(ctx, k, a, id)
	if err != nil {
		return nil, err
	}
	if !k.HasItems() {
		return row, nil
	}
	keys, err := s.photoKeys(ctx, k, id)
	if err != nil {
		return nil, err
	}
	n, err := s.remote.DeleteWhere(ctx, k.ItemTable, remote.Eq(k.ParentColumn, id))
	if err != nil {
		return nil, fmt.Errorf("clear %s items: %w", k.Name, err)
	}
	s.logger.Info("entity cleared", zap.String("kind", k.Name), zap.String("entity_id", id), zap.Int64("items", n))
	s.purge(ctx, id, keys)

	now := s.now().UTC()
	var patch remote.Row
	switch k.Name {
	case entity.Wall.Name:
		patch = remote.Row{"pending_posts": 0, "updated_at": now}
	case entity.Poll.Name:
		patch = remote.Row{
			"options":          models.OptionsToValue(e.Options),
			"status":           string(models.StatusInactive),
			"countdown_active": false,
			"updated_at":       now,
		}
	default:
		return row, nil
	}
	return s.write(ctx, k, id, patch, "clear")
}

// Delete removes the entity; dependent rows cascade. Wall photos are purged
// asynchronously.
func (s *Service) Delete(ctx context.Context, k entity.Kind, a Actor, id string) error {
	if _, _, err := s.owned(ctx, k, a, id); err != nil {
		return err
	}
	keys, err := s.photoKeys(ctx, k, id)
	if err != nil {
		return err
	}
	if err := s.remote.Delete(ctx, k.Table, id); err != nil {
		return fmt.Errorf("delete %s: %w", k.Name, err)
	}
	s.logger.Info("entity deleted", zap.String("kind", k.Name), zap.String("entity_id", id))
	s.purge(ctx, id, keys)
	return nil
}

// Spin publishes a spin trigger to every display of a prize wheel.
func (s *Service) Spin(ctx context.Context, k entity.Kind, a Actor, id string) (int64, error) {
	if k.Name != entity.PrizeWheel.Name {
		return 0, ErrUnsupported
	}
	if _, _, err := s.owned(ctx, k, a, id); err != nil {
		return 0, err
	}
	at := s.now().UnixMilli()
	if err := s.remote.PublishBroadcast(ctx, k.Channel(id), surface.EventSpin, map[string]any{"id": id, "timestamp": at}); err != nil {
		return 0, fmt.Errorf("spin: %w", err)
	}
	s.logger.Info("prize wheel spin", zap.String("entity_id", id), zap.Int64("at", at))
	return at, nil
}

func (s *Service) owned(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, models.Entity, error) {
	row, err := s.remote.Get(ctx, k.Table, id)
	if err != nil {
		return nil, models.Entity{}, fmt.Errorf("get %s: %w", k.Name, err)
	}
	e := models.EntityFromRow(row)
	if !a.Admin && e.HostID != a.HostID {
		return nil, models.Entity{}, ErrForbidden
	}
	return row, e, nil
}

func (s *Service) write(ctx context.Context, k entity.Kind, id string, patch remote.Row, op string) (remote.Row, error) {
	row, err := s.remote.Update(ctx, k.Table, id, patch)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, k.Name, err)
	}
	s.logger.Info("entity "+op, zap.String("kind", k.Name), zap.String("entity_id", id), zap.Any("status", row["status"]))
	return row, nil
}

func (s *Service) reload(ctx context.Context, k entity.Kind, id string) {
	if err := s.remote.PublishBroadcast(ctx, k.Channel(id), livestate.EventReload, map[string]string{"id": id}); err != nil {
		s.logger.Warn("failed to publish reload", zap.String("kind", k.Name), zap.String("entity_id", id), zap.Error(err))
	}
}

func (s *Service) photoKeys(ctx context.Context, k entity.Kind, id string) ([]string, error) {
	if k.Name != entity.Wall.Name {
		return nil, nil
	}
	rows, err := s.remote.List(ctx, k.ItemTable, remote.Query{Where: []remote.Filter{remote.Eq(k.ParentColumn, id)}})
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	var keys []string
	for _, r := range rows {
		if p, _ := r["photo_path"].(string); p != "" {
			keys = append(keys, p)
		}
	}
	return keys, nil
}

func (s *Service) purge(ctx context.Context, eventID string, keys []string) {
	if s.purger == nil || len(keys) == 0 {
		return
	}
	err := s.purger.EnqueueMediaPurge(ctx, queue.MediaPurgePayload{EventID: eventID, Bucket: s.opts.MediaBucket, Keys: keys})
	if err != nil {
		s.logger.Warn("failed to enqueue media purge", zap.String("entity_id", eventID), zap.Int("keys", len(keys)), zap.Error(err))
	}
}

// settingsPatch validates settings against the kind's whitelist.
func (s *Service) settingsPatch(k entity.Kind, settings map[string]any) (remote.Row, error) {
	patch := remote.Row{}
	for key, v := range settings {
		if !k.AllowsSetting(key) {
			return nil, fmt.Errorf("%w: %q is not a %s setting", ErrInvalidSettings, key, k.Name)
		}
		if key == "options" {
			opts, err := parseOptions(v)
			if err != nil {
				return nil, err
			}
			v = models.OptionsToValue(opts)
		}
		if key == "spin_speed" {
			name, _ := v.(string)
			if sp, _ := rotation.DefaultTiming().SpinFor(name); string(sp) != name {
				return nil, fmt.Errorf("%w: unknown spin speed %v", ErrInvalidSettings, v)
			}
		}
		patch[key] = v
	}
	return patch, nil
}

// parseOptions accepts a list of option texts or option objects. Options
// without an id get a fresh one.
func parseOptions(v any) ([]models.PollOption, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: options must be a list", ErrInvalidSettings)
	}
	out := make([]models.PollOption, 0, len(list))
	for _, raw := range list {
		var o models.PollOption
		switch t := raw.(type) {
		case string:
			o.Text = t
		case map[string]any:
			o.ID, _ = t["id"].(string)
			o.Text, _ = t["text"].(string)
		default:
			return nil, fmt.Errorf("%w: bad option %v", ErrInvalidSettings, raw)
		}
		if o.Text == "" {
			return nil, fmt.Errorf("%w: option text required", ErrInvalidSettings)
		}
		if o.ID == "" {
			o.ID = uuid.New().String()[:8]
		}
		out = append(out, o)
	}
	return out, nil
}
