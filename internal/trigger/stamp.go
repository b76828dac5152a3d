package trigger

import (
	"sync"
	"time"
)

// stampLayout задаёт формат метки времени в пути выхода.
const stampLayout = "20060102T150405"

// Stamper выдаёт метки времени с точностью до секунды, строго растущие
// в пределах процесса. Если секунда уже выдана, метка сдвигается на следующую.
type Stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewStamper создаёт Stamper. При now == nil используется time.Now.
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// Next возвращает следующую метку.
func (s *Stamper) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().Truncate(time.Second)
	if !s.last.IsZero() && !t.After(s.last) {
		t = s.last.Add(time.Second)
	}
	s.last = t
	return t
}

// OutputPath добавляет к prefix метку вида 20060102T150405.
func OutputPath(prefix string, t time.Time) string {
	return prefix + t.Format(stampLayout)
}
