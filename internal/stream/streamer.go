// Package stream drives the periodic sample-encode-send cycle that
// pushes sensor frames over the link.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/handstream/internal/link"
	"github.com/omochice/handstream/internal/observability"
	"github.com/omochice/handstream/internal/source"
	"github.com/omochice/handstream/pkg/wire"
)

// DefaultHz is the tick rate used when the config does not set one.
const DefaultHz = 60

// Link is the outbound connection the streamer pushes frames to.
type Link interface {
	IsConnected() bool
	Send(data []byte) error
}

// Config holds streaming parameters.
type Config struct {
	// Tag labels every outbound frame.
	Tag string
	// Hz is the tick rate; DefaultHz when zero or negative.
	Hz int
}

// Streamer samples the source once per tick, encodes the frame, and
// hands it to a sender goroutine so the tick never blocks on I/O.
// Delivery is best effort, latest value wins: while the link is down
// frames are dropped silently, and a frame still pending when the next
// tick fires is replaced.
type Streamer struct {
	src    source.Source
	link   Link
	tag    string
	hz     int
	logger zerolog.Logger

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewStreamer creates a streamer and starts its sender goroutine. Call
// Close to release it.
func NewStreamer(src source.Source, ln Link, cfg Config, logger zerolog.Logger) *Streamer {
	hz := cfg.Hz
	if hz <= 0 {
		hz = DefaultHz
	}
	tag := cfg.Tag
	if tag == "" {
		tag = wire.TagRightHand
	}
	s := &Streamer{
		src:    src,
		link:   ln,
		tag:    tag,
		hz:     hz,
		logger: logger.With().Str("component", "stream").Str("tag", tag).Logger(),
		outbox: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sendLoop()
	return s
}

// Hz returns the tick rate.
func (s *Streamer) Hz() int {
	return s.hz
}

// Run ticks at the configured rate until ctx is cancelled. Only one Run
// may be active at a time.
func (s *Streamer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().Int("hz", s.hz).Msg("streaming started")
	ticker := time.NewTicker(time.Second / time.Duration(s.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("streaming stopped")
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick performs one sample-encode-submit cycle. It never blocks on the
// network and never returns an error to the caller; send failures are
// logged asynchronously by the sender goroutine.
func (s *Streamer) Tick() {
	vec := s.src.Snapshot()
	if !s.link.IsConnected() {
		observability.RecordFrameDropped(s.tag, "disconnected")
		s.logger.Debug().Msg("link down, dropping frame")
		return
	}
	data, err := wire.NewFrame(s.tag, vec).Encode()
	if err != nil {
		observability.RecordFrameDropped(s.tag, "encode")
		s.logger.Error().Err(err).Msg("failed to encode frame")
		return
	}
	s.submit(data)
}

// Close stops the sender goroutine. Idempotent.
func (s *Streamer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// submit places the frame in the single-slot outbox, replacing any
// frame still pending from an earlier tick.
func (s *Streamer) submit(data []byte) {
	select {
	case s.outbox <- data:
	default:
		select {
		case <-s.outbox:
			observability.RecordFrameDropped(s.tag, "superseded")
		default:
		}
		select {
		case s.outbox <- data:
		default:
		}
	}
}

func (s *Streamer) sendLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.outbox:
			if err := s.link.Send(data); err != nil {
				if errors.Is(err, link.ErrNotConnected) {
					observability.RecordFrameDropped(s.tag, "disconnected")
					s.logger.Debug().Msg("link went down before send, dropping frame")
					continue
				}
				s.logger.Warn().Err(err).Msg("failed to send frame")
				continue
			}
			observability.RecordFrameSent(s.tag)
		}
	}
}
