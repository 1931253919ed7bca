// Package session holds the base video and the ordered candidate tracks a
// user is working with.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/reelsync/internal/domain"
)

var (
	ErrTrackNotFound = errors.New("session: track not found")
	ErrSessionFrozen = errors.New("session: a render over this session is active")
	ErrNoData        = errors.New("session: track has no data")
)

// Session is safe for concurrent use. While frozen (during a render) tracks
// cannot be added, removed or re-offset.
type Session struct {
	mu     sync.RWMutex
	base   domain.BaseMedia
	tracks []domain.AudioCandidate
	frozen bool
}

// New starts an empty session over base.
func New(base domain.BaseMedia) *Session {
	return &Session{base: base}
}

// Base returns the session's video.
func (s *Session) Base() domain.BaseMedia {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Add appends a track with a fresh ID and a zero offset and returns the ID.
func (s *Session) Add(track domain.AudioCandidate) (string, error) {
	if len(track.Data) == 0 {
		return "", ErrNoData
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return "", ErrSessionFrozen
	}

	track.ID = uuid.New().String()
	track.StartOffset = 0
	s.tracks = append(s.tracks, track)
	return track.ID, nil
}

// Remove drops the track with id, keeping the order of the rest.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrSessionFrozen
	}

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	return nil
}

// SetOffset moves the selected window of one track. The window must fit
// inside the track given the base video's duration.
func (s *Session) SetOffset(id string, offset float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrSessionFrozen
	}

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	t := &s.tracks[i]
	if err := domain.ValidateWindow(offset, s.base.Duration, t.Duration); err != nil {
		return fmt.Errorf("offset %.3f for %s: %w", offset, t.Name, err)
	}
	t.StartOffset = offset
	return nil
}

// MaxOffset is the largest offset that keeps the window inside the track.
func (s *Session) MaxOffset(id string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	limit := s.tracks[i].Duration - s.base.Duration
	if limit < 0 {
		return 0, nil
	}
	return limit, nil
}

// Track returns a copy of one track.
func (s *Session) Track(id string) (domain.AudioCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.AudioCandidate{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return s.tracks[i], nil
}

// Tracks returns a copy of the tracks in insertion order.
func (s *Session) Tracks() []domain.AudioCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AudioCandidate, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Freeze blocks mutation and returns a snapshot of the base and tracks. The
// returned func unfreezes; it is safe to call more than once.
func (s *Session) Freeze() (domain.BaseMedia, []domain.AudioCandidate, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return domain.BaseMedia{}, nil, nil, ErrSessionFrozen
	}
	s.frozen = true

	tracks := make([]domain.AudioCandidate, len(s.tracks))
	copy(tracks, s.tracks)

	var once sync.Once
	unfreeze := func() {
		once.Do(func() {
			s.mu.Lock()
			s.frozen = false
			s.mu.Unlock()
		})
	}
	return s.base, tracks, unfreeze, nil
}

func (s *Session) indexOf(id string) int {
	for i := range s.tracks {
		if s.tracks[i].ID == id {
			return i
		}
	}
	return -1
}
