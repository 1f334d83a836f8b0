package progress

import "sync"

// Monitor tracks how far an import run has progressed, in completed chunks.
// Implementations must be safe for concurrent use.
type Monitor interface {
	SetTotal(int)
	Incr(int)
	Progress() (completed, total int)
	Fraction() float64
}

type monitor struct {
	mu        *sync.Mutex
	completed int
	total     int
}

func New() Monitor {
	return &monitor{
		mu: &sync.Mutex{},
	}
}

func (m *monitor) SetTotal(val int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = val
}

func (m *monitor) Incr(val int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed += val
}

func (m *monitor) Progress() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.completed, m.total
}

func (m *monitor) Fraction() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.total == 0 {
		return 0
	}

	return float64(m.completed) / float64(m.total)
}
