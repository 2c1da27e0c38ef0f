package surface

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/livestate"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/rotation"
)

// EventSpin is the broadcast event that starts a prize-wheel spin.
const EventSpin = "spin_trigger"

// Sink receives rendered frames. An error ends the run.
type Sink func(Frame) error

// Config holds the collaborators of a Surface.
type Config struct {
	Service      remote.Service
	Kind         entity.Kind
	EntityID     string
	Clock        clockwork.Clock
	Timing       rotation.Timing
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// Surface runs one display until its context ends or its sink fails.
type Surface struct {
	cfg    Config
	logger *zap.Logger
	state  *State
}

// New creates a Surface.
func New(cfg Config) *Surface {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	logger := cfg.Logger.With(zap.String("kind", cfg.Kind.Name), zap.String("entity_id", cfg.EntityID))
	return &Surface{
		cfg:    cfg,
		logger: logger,
		state:  NewState(cfg.Kind, cfg.Timing, cfg.Clock.Now),
	}
}

// Run subscribes, renders and drives timers. Every subscription and timer is
// released before it returns.
func (s *Surface) Run(ctx context.Context, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opts livestate.Options
	if s.cfg.Kind.Name == entity.PrizeWheel.Name {
		opts.Signals = []string{EventSpin}
	}
	live := livestate.Open(ctx, s.cfg.Service, s.cfg.Kind, s.cfg.EntityID, opts, s.logger)
	defer live.Close()

	second := s.cfg.Clock.NewTicker(time.Second)
	defer second.Stop()
	sweep := s.cfg.Clock.NewTicker(s.cfg.Timing.ExpirySweep)
	defer sweep.Stop()

	var rotTimer clockwork.Timer
	defer func() {
		if rotTimer != nil {
			rotTimer.Stop()
		}
	}()

	apply := func(eff Effects) error {
		for _, w := range eff.Writes {
			go s.write(ctx, w)
		}
		if eff.Rearm {
			if rotTimer != nil {
				stopAndDrainTimer(rotTimer)
				rotTimer = nil
			}
			if eff.Next > 0 {
				rotTimer = s.cfg.Clock.NewTimer(eff.Next)
			}
		}
		if eff.Emit {
			return sink(s.state.Frame())
		}
		return nil
	}

	s.logger.Info("display attached")
	defer s.logger.Info("display detached")

	for {
		var rotationC <-chan time.Time
		if rotTimer != nil {
			rotationC = rotTimer.Chan()
		}

		var eff Effects
		select {
		case <-ctx.Done():
			return nil
		case <-live.Updates():
			eff = s.state.Update(live.Snapshot())
		case <-second.Chan():
			eff = s.state.Second()
		case <-sweep.Chan():
			eff = s.state.Minute()
		case <-rotationC:
			rotTimer = nil
			eff = s.state.Rotate()
		case sig := <-live.Signals():
			if sig.Event == EventSpin {
				eff = s.state.Spin(sig.Payload)
			}
		}
		if err := apply(eff); err != nil {
			return err
		}
	}
}

func (s *Surface) write(ctx context.Context, w Write) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()
	if _, err := s.cfg.Service.Update(ctx, w.Table, w.ID, w.Patch); err != nil {
		s.logger.Error("failed to write display transition", zap.String("reason", w.Reason), zap.Error(err))
		return
	}
	s.logger.Info("display transition written", zap.String("reason", w.Reason))
}

// stopAndDrainTimer stops timer and empties its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
