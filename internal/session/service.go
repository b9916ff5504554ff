package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/advisor"
	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/risk"
)

const (
	recordAnswers    = "answers"
	recordTranscript = "transcript"
)

// ServiceConfig holds configuration for the session service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// QueueSize bounds the number of writes waiting for the writer.
	// Default: 256
	QueueSize int

	// WriteTimeout bounds each repository write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// Metrics is optional.
	Metrics *observability.Metrics
}

type write struct {
	key    string
	record string
	value  []byte
	seq    uint64
}

// Service loads and saves session records. Reads never fail: missing or
// corrupt records come back as defaults. Saves are queued for a background
// writer and never block the caller; a full queue or a failed write is
// logged and dropped.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	writeTimeout time.Duration
	metrics      *observability.Metrics

	queue chan write

	mu      sync.Mutex
	seq     uint64
	pending map[string]write
}

// NewService creates a session service. Call Run to start the writer.
func NewService(cfg ServiceConfig) *Service {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		writeTimeout: writeTimeout,
		metrics:      cfg.Metrics,
		queue:        make(chan write, queueSize),
		pending:      make(map[string]write),
	}
}

// LoadAnswers returns the owner's stored answers, or all-unknown answers.
func (s *Service) LoadAnswers(ctx context.Context, owner string) risk.Answers {
	data, ok := s.load(ctx, AnswersKey(owner))
	if !ok {
		return risk.DefaultAnswers()
	}
	return risk.ParseAnswers(data)
}

// SaveAnswers queues the owner's answers for writing.
func (s *Service) SaveAnswers(owner string, answers risk.Answers) {
	s.save(AnswersKey(owner), recordAnswers, risk.NormalizeAnswers(answers))
}

// LoadTranscript returns the owner's stored transcript, or the opening message.
func (s *Service) LoadTranscript(ctx context.Context, owner string) []advisor.Message {
	data, ok := s.load(ctx, TranscriptKey(owner))
	if !ok {
		return advisor.InitialTranscript()
	}
	return advisor.ParseTranscript(data)
}

// SaveTranscript queues the owner's transcript for writing.
func (s *Service) SaveTranscript(owner string, messages []advisor.Message) {
	s.save(TranscriptKey(owner), recordTranscript, messages)
}

func (s *Service) load(ctx context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	w, queued := s.pending[key]
	s.mu.Unlock()
	if queued {
		return w.value, true
	}

	data, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to load session record, using defaults")
		}
		return nil, false
	}
	return data, true
}

func (s *Service) save(key, record string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to encode session record")
		s.count(record, "error")
		return
	}

	s.mu.Lock()
	s.seq++
	w := write{key: key, record: record, value: data, seq: s.seq}

	select {
	case s.queue <- w:
		s.pending[key] = w
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.logger.Warn().Str("key", key).Msg("session write queue full, dropping write")
		s.count(record, "dropped")
	}
}

// Run writes queued records until ctx is cancelled, then flushes whatever is
// still queued.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case w := <-s.queue:
			s.write(ctx, w)
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		}
	}
}

// Flush writes everything still queued and reports how many records it
// wrote. Saves that land after Run returned are applied here.
func (s *Service) Flush() int {
	return s.drain()
}

func (s *Service) drain() int {
	n := 0
	for {
		select {
		case w := <-s.queue:
			s.write(context.Background(), w)
			n++
		default:
			return n
		}
	}
}

func (s *Service) write(ctx context.Context, w write) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	err := s.repo.Put(writeCtx, w.key, w.value)

	s.mu.Lock()
	if cur, ok := s.pending[w.key]; ok && cur.seq == w.seq {
		delete(s.pending, w.key)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("key", w.key).Msg("failed to write session record")
		s.count(w.record, "error")
		return
	}
	s.count(w.record, "ok")
}

// Pending returns the number of records with a write not yet applied.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) count(record, outcome string) {
	if s.metrics != nil {
		s.metrics.StoreWrites.WithLabelValues(record, outcome).Inc()
	}
}
