package app

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type captchaEntry struct {
	answer  int
	expires time.Time
}

// CaptchaStore issues and verifies short-lived arithmetic challenges.
// Entries are single-use: the first successful verification consumes them.
type CaptchaStore struct {
	mu      sync.Mutex
	entries map[string]captchaEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewCaptchaStore(ttl time.Duration) *CaptchaStore {
	return &CaptchaStore{
		entries: make(map[string]captchaEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue creates a fresh challenge and returns its id with the question
// text. Expired entries are swept first, which bounds the map size.
func (s *CaptchaStore) Issue() (string, string) {
	a := rand.Intn(20) + 1
	b := rand.Intn(20) + 1

	var answer int
	var question string
	switch rand.Intn(3) {
	case 0:
		answer = a + b
		question = fmt.Sprintf("%d + %d", a, b)
	case 1:
		if a < b {
			a, b = b, a
		}
		answer = a - b
		question = fmt.Sprintf("%d - %d", a, b)
	default:
		a, b = rand.Intn(10)+1, rand.Intn(10)+1
		answer = a * b
		question = fmt.Sprintf("%d × %d", a, b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	id := newShortID()
	for _, taken := s.entries[id]; taken; _, taken = s.entries[id] {
		id = newShortID()
	}
	s.entries[id] = captchaEntry{answer: answer, expires: s.now().Add(s.ttl)}

	log.Debug().Str("module", "app.captcha").Str("id", id).Str("question", question).Msg("issued captcha")
	return id, question
}

// Verify consumes the challenge on a correct answer. Unknown ids, expired
// entries and answers that do not parse as the stored integer all fail;
// malformed input is just a wrong answer, never an error.
func (s *CaptchaStore) Verify(id, answer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	if s.now().After(e.expires) {
		delete(s.entries, id)
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n != e.answer {
		return false
	}
	delete(s.entries, id)
	return true
}

func (s *CaptchaStore) sweepLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
}

// newShortID returns the 8-character id format used for captchas and
// client sessions alike.
func newShortID() string { return uuid.NewString()[:8] }
