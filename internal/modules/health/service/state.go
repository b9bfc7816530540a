package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	storeConnected atomic.Bool
	lastTradeUnix  atomic.Int64 // unix seconds
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetStoreConnected(v bool) { s.storeConnected.Store(v) }
func (s *State) StoreConnected() bool     { return s.storeConnected.Load() }

func (s *State) TouchTrade(t time.Time) { s.lastTradeUnix.Store(t.Unix()) }
func (s *State) LastTrade() time.Time {
	u := s.lastTradeUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
