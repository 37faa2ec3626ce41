package sync

import (
	"context"

	"github.com/dvloznov/moneycal/internal/remote"
)

// StartLongPoll starts the standing change subscription. A start request
// while a loop is already running is a no-op; after a cancellation or failure
// a fresh loop is created.
func (s *Session) StartLongPoll() {
	s.do(func() { s.startLongPollLocked() })
}

func (s *Session) startLongPollLocked() {
	if s.pollRunning {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollGen++
	s.pollCancel = cancel
	s.pollRunning = true
	s.disconnected = false
	go s.pollLoop(ctx, s.pollGen)
}

// RetryLongPoll is the user-driven recovery from the disconnected state. It
// restarts the loop from a fresh cursor; the next batch re-baselines state.
func (s *Session) RetryLongPoll() {
	s.do(func() {
		if s.pollRunning {
			return
		}
		s.cursor = 0
		s.startLongPollLocked()
	})
}

// pollLoop blocks on the server until a change exists, hands non-empty
// batches to the merge engine, and reconnects immediately. Never retried
// automatically on failure: a failing server would turn that into a crash
// loop. Runs off the owner goroutine.
//
// Exit posts carry the loop's generation: a torn-down loop may still be
// parked inside LongPoll when its successor starts, and its late exit must
// not clear state that now belongs to the successor.
func (s *Session) pollLoop(ctx context.Context, gen int) {
	s.log.Info().Msg("long-poll channel started")
	for {
		var cursor int64
		s.do(func() { cursor = s.cursor })

		batch, err := s.svc.LongPoll(ctx, cursor)
		if err != nil {
			if remote.IsCanceled(err) {
				s.log.Debug().Msg("long-poll channel stopped")
				s.post(func() {
					if s.pollGen == gen {
						s.pollRunning = false
					}
				})
				return
			}
			s.log.Warn().Err(err).Msg("long-poll channel failed")
			s.post(func() {
				if s.pollGen != gen {
					return
				}
				s.pollRunning = false
				s.pollCancel = nil
				s.disconnected = true
				s.notifier.ShowAlert("Disconnected",
					"Live updates stopped. Changes from other devices will not appear until you retry.")
			})
			return
		}
		if batch == nil {
			// Poll timed out with no changes; reconnect with the same cursor.
			continue
		}
		s.do(func() { s.applyBatch(batch, ReasonPush) })
	}
}
