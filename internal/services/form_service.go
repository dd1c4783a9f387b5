package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"grain-backend/internal/metrics"
	"grain-backend/internal/models"
	"grain-backend/internal/timeutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("form session not found")
	// ErrFormNotOpen is returned for field edits while the session is on the home screen
	ErrFormNotOpen = errors.New("no entry form is open")
)

// FormService keeps entry-form sessions in memory. Nothing is persisted: a session
// is dropped when the operator goes home, discards it, or leaves it idle.
type FormService struct {
	mu       sync.RWMutex
	sessions map[string]*models.FormSession
	now      func() time.Time
	logger   *zap.Logger
}

func NewFormService(logger *zap.Logger) *FormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormService{
		sessions: make(map[string]*models.FormSession),
		now:      timeutil.Now,
		logger:   logger,
	}
}

// Create opens a session on the home screen with an empty record
func (s *FormService) Create() models.FormSession {
	now := s.now()
	sess := &models.FormSession{
		ID:        uuid.NewString(),
		Mode:      models.ModeHome,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.FormSessionsActive.Set(float64(count))
	s.logger.Debug("session created", zap.String("session_id", sess.ID))
	return *sess
}

// Get returns a snapshot of the session
func (s *FormService) Get(id string) (models.FormSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.FormSession{}, ErrSessionNotFound
	}
	return *sess, nil
}

// Navigate moves the session to mode. Going home discards the record.
func (s *FormService) Navigate(id string, mode models.Mode) (models.FormSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.FormSession{}, ErrSessionNotFound
	}
	if !models.CanTransition(sess.Mode, mode) {
		return *sess, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, sess.Mode, mode)
	}

	sess.Mode = mode
	if mode == models.ModeHome {
		sess.Record = models.TransactionRecord{}
	}
	sess.UpdatedAt = s.now()
	return *sess, nil
}

// Apply runs the updates through the record reducer. Either every update lands or
// none does.
func (s *FormService) Apply(id string, updates []models.FieldUpdate) (models.FormSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.FormSession{}, ErrSessionNotFound
	}
	if sess.Mode == models.ModeHome {
		return *sess, ErrFormNotOpen
	}

	rec, err := models.ApplyUpdates(sess.Record, updates)
	if err != nil {
		return *sess, err
	}
	sess.Record = rec
	sess.UpdatedAt = s.now()
	return *sess, nil
}

// Discard drops the session
func (s *FormService) Discard(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	metrics.FormSessionsActive.Set(float64(count))
	return nil
}

// Sweep drops sessions untouched for longer than idle and returns how many went
func (s *FormService) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.FormSessionsActive.Set(float64(count))
	return removed
}

// Count returns the number of open sessions
func (s *FormService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
