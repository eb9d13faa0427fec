package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

// fakeStream plays back one tick batch per session. Every session except
// the last ends with a transport error and closed channels, the way the
// live stream's read loop terminates.
type fakeStream struct {
	mu         sync.Mutex
	sessions   [][]*models.Tick
	reconnects int
	connected  bool
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeStream) Subscribe(context.Context) error { return nil }

func (s *fakeStream) Read(context.Context) (<-chan *models.Tick, <-chan error) {
	s.mu.Lock()
	sess := s.sessions[0]
	s.sessions = s.sessions[1:]
	last := len(s.sessions) == 0
	s.mu.Unlock()

	ticks := make(chan *models.Tick, len(sess))
	errs := make(chan error, 1)
	for _, t := range sess {
		ticks <- t
	}
	if !last {
		errs <- errors.New("connection reset by peer")
		close(ticks)
		close(errs)
	}
	return ticks, errs
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestCollectorResumesReadingAfterStreamError(t *testing.T) {
	e, metrics := newTestEngine(t)
	proc := NewTickProcessor(e, nil, metrics, false)
	stream := &fakeStream{sessions: [][]*models.Tick{
		{{Instrument: "AAA", Timestamp: testBase, Price: 100, Quantity: 1}},
		{{Instrument: "AAA", Timestamp: testBase.Add(time.Second), Price: 101, Quantity: 1}},
	}}
	c := NewTickCollector(stream, proc, metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	// Ticks from both sides of the failure must arrive.
	assert.Eventually(t, func() bool { return metrics.count("tick") == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, stream.reconnectCount())
	assert.Equal(t, 1, metrics.count("err_stream"))
}
