package dedup

// Set is the persisted set of identity keys already emitted. Keys added
// since the last Load or Flush are pending: they are visible to Contains
// but become durable only once Flush succeeds, and Rollback drops them.
type Set interface {
	Load() error
	Contains(key string) bool
	Add(key string)
	Flush() error
	Rollback()
	Len() int
}

// Memory is a Set that never touches disk
type Memory struct {
	keys    map[string]struct{}
	pending map[string]struct{}
}

// NewMemory creates a Memory set seeded with keys
func NewMemory(keys ...string) *Memory {
	m := &Memory{
		keys:    make(map[string]struct{}, len(keys)),
		pending: make(map[string]struct{}),
	}
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
	return m
}

func (m *Memory) Load() error { return nil }

func (m *Memory) Contains(key string) bool {
	if _, ok := m.keys[key]; ok {
		return true
	}
	_, ok := m.pending[key]
	return ok
}

func (m *Memory) Add(key string) {
	if _, ok := m.keys[key]; ok {
		return
	}
	m.pending[key] = struct{}{}
}

func (m *Memory) Flush() error {
	for k := range m.pending {
		m.keys[k] = struct{}{}
	}
	m.pending = make(map[string]struct{})
	return nil
}

func (m *Memory) Rollback() {
	m.pending = make(map[string]struct{})
}

func (m *Memory) Len() int { return len(m.keys) + len(m.pending) }

// Pending reports how many keys await a Flush
func (m *Memory) Pending() int { return len(m.pending) }
