// Package sync is the reconciliation engine: it owns the entity store, runs
// the mutation pipeline, merges remote deltas, and maintains the long-poll
// subscription.
//
// All store mutation happens on a single owner goroutine. Public methods post
// a task onto that goroutine and wait; background work (remote calls, the
// long-poll loop) posts its completion back instead of touching shared state.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/moneycal/internal/cache"
	"github.com/dvloznov/moneycal/internal/notify"
	"github.com/dvloznov/moneycal/internal/pending"
	"github.com/dvloznov/moneycal/internal/remote"
	"github.com/dvloznov/moneycal/internal/store"
)

// busyDelay is how long an operation may run before the thinking indicator
// turns on. Fast operations never show a spinner flash.
const busyDelay = 2 * time.Second

// RefreshReason tells the merge engine why a batch arrived. Foreground
// transitions are the only reason that skips the currently open edit.
type RefreshReason int

const (
	// ReasonUserRefresh is an explicit refresh request.
	ReasonUserRefresh RefreshReason = iota
	// ReasonForeground is the app returning from background.
	ReasonForeground
	// ReasonPush is a long-poll delivery.
	ReasonPush
)

// Options carries the collaborators a Session is built from.
type Options struct {
	Log      zerolog.Logger
	Store    *store.Store
	Queue    pending.Queue
	Cache    cache.Cache
	Service  remote.Service
	Notifier notify.Notifier
	// User stamps the updated-by audit field on outgoing mutations.
	User string
}

// Session is one device's sync engine instance. Construct with New, tear down
// with Close.
type Session struct {
	log      zerolog.Logger
	store    *store.Store
	queue    pending.Queue
	cache    cache.Cache
	svc      remote.Service
	notifier notify.Notifier
	validate *validator.Validate
	user     string

	tasks chan func()
	done  chan struct{}

	// Everything below is owned by the loop goroutine.
	editingID       string
	inflight        map[string]bool
	dirty           map[string]bool
	interactions    map[string][]string
	cursor          int64
	disconnected    bool
	background      bool
	thinking        int
	balanceMethodID string

	pollCancel    context.CancelFunc
	pollRunning   bool
	pollGen       int
	refreshCancel context.CancelFunc
}

// New constructs a session and starts its owner goroutine.
func New(opts Options) *Session {
	s := &Session{
		log:          opts.Log,
		store:        opts.Store,
		queue:        opts.Queue,
		cache:        opts.Cache,
		svc:          opts.Service,
		notifier:     opts.Notifier,
		validate:     validator.New(),
		user:         opts.User,
		tasks:        make(chan func(), 64),
		done:         make(chan struct{}),
		inflight:     make(map[string]bool),
		dirty:        make(map[string]bool),
		interactions: make(map[string][]string),
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for it. Must not be called from
// the owner goroutine itself.
func (s *Session) do(fn func()) {
	ran := make(chan struct{})
	select {
	case s.tasks <- func() { fn(); close(ran) }:
	case <-s.done:
		return
	}
	select {
	case <-ran:
	case <-s.done:
	}
}

// post hands fn to the owner goroutine without waiting. Used by background
// completions.
func (s *Session) post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// Close tears the session down: long-poll and refresh tasks are cancelled and
// the owner goroutine stops. The durable queue and cache are closed by the
// caller that opened them.
func (s *Session) Close() {
	s.do(func() {
		if s.pollCancel != nil {
			s.pollCancel()
			s.pollCancel = nil
			s.pollRunning = false
		}
		if s.refreshCancel != nil {
			s.refreshCancel()
			s.refreshCancel = nil
		}
	})
	close(s.done)
}

// Store exposes the entity store for read-side consumers. Readers must access
// it via Do to stay on the owner goroutine.
func (s *Session) Store() *store.Store { return s.store }

// Do runs fn on the owner goroutine, giving read-side callers safe access to
// the store.
func (s *Session) Do(fn func()) { s.do(fn) }

// SetEditing marks the transaction currently open in an editor, or clears the
// mark with an empty id. A foreground refresh never clobbers the open edit.
func (s *Session) SetEditing(id string) {
	s.do(func() { s.editingID = id })
}

// SetBackground records whether the app is currently backgrounded. Failure
// feedback switches from alerts to push notifications while backgrounded; a
// foreground refresh clears the flag.
func (s *Session) SetBackground(v bool) {
	s.do(func() { s.background = v })
}

// Thinking reports whether the delayed busy indicator is on.
func (s *Session) Thinking() bool {
	var v bool
	s.do(func() { v = s.thinking > 0 })
	return v
}

// Disconnected reports whether the long-poll channel is in its failed state
// awaiting a manual retry.
func (s *Session) Disconnected() bool {
	var v bool
	s.do(func() { v = s.disconnected })
	return v
}

// LogInteraction buffers a user-interaction note for a record. The buffer is
// cleared when the record's save confirms; history is refetched on demand to
// avoid duplication.
func (s *Session) LogInteraction(id, note string) {
	s.do(func() {
		s.interactions[id] = append(s.interactions[id], note)
	})
}

// startBusy arms the delayed thinking indicator and returns a stop function.
// The returned func and the timer's posted body both run on the owner
// goroutine, so the flags need no lock.
func (s *Session) startBusy() func() {
	stopped := false
	fired := false
	timer := time.AfterFunc(busyDelay, func() {
		s.post(func() {
			if stopped {
				return
			}
			fired = true
			s.thinking++
		})
	})
	return func() {
		timer.Stop()
		stopped = true
		if fired {
			s.thinking--
		}
	}
}

// alertf surfaces a user-facing alert and logs it.
func (s *Session) alertf(title, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.log.Warn().Str("title", title).Msg(msg)
	s.notifier.ShowAlert(title, msg)
}
