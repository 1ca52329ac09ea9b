package core

import (
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/apdupes/internal/config"
	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/store"
)

var (
	// ErrAnalysisNotFound is returned for an unknown or evicted analysis ID.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrAnalysisRunning is returned by Finished while the analysis runs.
	ErrAnalysisRunning = errors.New("analysis still running")
)

// AnalysisTimeout is used when the configured timeout is not positive.
var AnalysisTimeout = 10 * time.Minute

// DefaultResultTTL is how long a finished analysis stays subscribable.
const DefaultResultTTL = 5 * time.Minute

// Service runs analyses in the background and keeps them addressable by ID
// until shortly after they finish. Finished runs are saved to the store.
type Service struct {
	engine    Engine
	store     store.Store
	limiter   *Limiter
	timeout   time.Duration
	resultTTL time.Duration
	defaults  detect.Options

	mu       sync.RWMutex
	analyses map[string]*activeAnalysis
}

// NewService creates a Service that saves finished runs to st.
func NewService(st store.Store, cfg *config.Config) *Service {
	timeout := cfg.Analysis.Timeout
	if timeout <= 0 {
		timeout = AnalysisTimeout
	}
	ttl := cfg.Analysis.ResultTTL
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}

	return &Service{
		engine: Engine{
			ChunkSize:     cfg.Analysis.ChunkSize,
			StrictMapping: true,
		},
		store:     st,
		limiter:   NewLimiter(cfg.Analysis.MaxConcurrent, cfg.Analysis.MaxWaitTime),
		timeout:   timeout,
		resultTTL: ttl,
		defaults: detect.Options{
			DateWindowDays:  cfg.Analysis.DateWindowDays,
			AmountTolerance: cfg.Analysis.AmountTolerance,
		},
		analyses: make(map[string]*activeAnalysis),
	}
}

// Engine returns the engine used for analyses.
func (s *Service) Engine() Engine {
	return s.engine
}

// DefaultOptions returns the options applied when a request sets none.
func (s *Service) DefaultOptions() detect.Options {
	return s.defaults
}

// LimiterStatus returns the analysis slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// State is where an analysis is in its lifecycle.
type State string

const (
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// AnalysisStatus is a point-in-time view of an analysis.
type AnalysisStatus struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	State     State     `json:"state"`
	Stage     string    `json:"stage,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

type activeAnalysis struct {
	ID        string
	FileName  string
	StartedAt time.Time
	Cancel    func()
	Done      chan struct{}

	mu        sync.Mutex
	last      Message
	terminal  *Message
	listeners []chan Message
}

func newActiveAnalysis(id, fileName string, cancel func()) *activeAnalysis {
	return &activeAnalysis{
		ID:        id,
		FileName:  fileName,
		StartedAt: time.Now().UTC(),
		Cancel:    cancel,
		Done:      make(chan struct{}),
		last:      ProgressMessage(StageParsing, 0),
	}
}

// notify delivers m to every listener. Progress is dropped for a listener
// whose buffer is full; a terminal message displaces the oldest buffered
// event so it is never lost. Listeners are closed after a terminal message.
func (a *activeAnalysis) notify(m Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.terminal != nil {
		return
	}
	a.last = m

	if !m.Terminal() {
		for _, ch := range a.listeners {
			select {
			case ch <- m:
			default:
				// Listener is slow, skip this update
			}
		}
		return
	}

	a.terminal = &m
	for _, ch := range a.listeners {
		deliver(ch, m)
		close(ch)
	}
	a.listeners = nil
	close(a.Done)
}

func deliver(ch chan Message, m Message) {
	for {
		select {
		case ch <- m:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (a *activeAnalysis) subscribe() <-chan Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan Message, 10)
	if a.terminal != nil {
		ch <- *a.terminal
		close(ch)
		return ch
	}

	ch <- a.last
	a.listeners = append(a.listeners, ch)
	return ch
}

func (a *activeAnalysis) status() AnalysisStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := AnalysisStatus{
		ID:        a.ID,
		FileName:  a.FileName,
		State:     StateRunning,
		Stage:     a.last.Stage,
		Progress:  a.last.Progress,
		StartedAt: a.StartedAt,
	}
	if a.terminal != nil {
		st.Stage = ""
		st.Progress = 100
		if a.terminal.Type == MessageError {
			st.State = StateFailed
			st.Error = a.terminal.Error
		} else {
			st.State = StateComplete
		}
	}
	return st
}

func (s *Service) lookup(id string) (*activeAnalysis, bool) {
	s.mu.RLock()
	a, ok := s.analyses[id]
	s.mu.RUnlock()
	return a, ok
}

// cleanup removes the analysis from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.analyses, id)
		s.mu.Unlock()
	})
}
