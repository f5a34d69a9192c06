package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/metrics"
)

const defaultReaderBuffer = 64

// Streams is the per-match event stream sink. A match's stream is created
// on first use, has no history, and is released when its last reader
// detaches. Readers that fall behind lose records instead of slowing the
// publisher.
type Streams struct {
	mu         sync.Mutex
	streams    map[string]*stream
	bufferSize int
}

type stream struct {
	readers map[uint64]chan Record
	nextID  uint64
}

// Subscription is one reader attached to a match stream.
type Subscription struct {
	c    chan Record
	once sync.Once
	stop func()
}

// C delivers records until the subscription is closed.
func (s *Subscription) C() <-chan Record {
	return s.c
}

// Close detaches the reader. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.stop)
}

func NewStreams(bufferSize int) *Streams {
	if bufferSize <= 0 {
		bufferSize = defaultReaderBuffer
	}
	return &Streams{
		streams:    make(map[string]*stream),
		bufferSize: bufferSize,
	}
}

func (s *Streams) Name() string {
	return "stream"
}

// getOrCreate must be called with s.mu held.
func (s *Streams) getOrCreate(matchID string) *stream {
	st, ok := s.streams[matchID]
	if !ok {
		st = &stream{readers: make(map[uint64]chan Record)}
		s.streams[matchID] = st
	}
	return st
}

// Attach registers a reader on the match stream.
func (s *Streams) Attach(matchID string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreate(matchID)
	id := st.nextID
	st.nextID++
	ch := make(chan Record, s.bufferSize)
	st.readers[id] = ch
	metrics.StreamReaders.Inc()

	log.Debug("Stream reader attached",
		log.MatchID(matchID),
		zap.Int("readers", len(st.readers)),
	)

	return &Subscription{
		c:    ch,
		stop: func() { s.detach(matchID, id) },
	}
}

func (s *Streams) detach(matchID string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[matchID]
	if !ok {
		return
	}
	ch, ok := st.readers[id]
	if !ok {
		return
	}
	delete(st.readers, id)
	close(ch)
	metrics.StreamReaders.Dec()

	if len(st.readers) == 0 {
		delete(s.streams, matchID)
		log.Debug("Stream released", log.MatchID(matchID))
	}
}

// Publish fans the record out to every reader currently attached.
func (s *Streams) Publish(_ context.Context, matchID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreate(matchID)
	for _, ch := range st.readers {
		select {
		case ch <- rec:
		default:
			metrics.StreamDrops.Inc()
		}
	}
	return nil
}

// Readers returns the number of readers attached to the match stream.
func (s *Streams) Readers(matchID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.streams[matchID]; ok {
		return len(st.readers)
	}
	return 0
}

// Active reports whether a stream currently exists for the match.
func (s *Streams) Active(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.streams[matchID]
	return ok
}
