package xpmem

import (
	"context"
	"sync"
	"time"
)

// mockBackend 是内存实现的持久层，同时满足 Backend 和 HistoryBackend，
// 用于不依赖 SQLite 的单元测试。通过 failUpsert 等开关注入故障，
// gate 不为 nil 时每次写操作先阻塞等待，用于制造队列堆积。
type mockBackend struct {
	mu sync.Mutex

	rows     map[string][]byte
	versions map[string][]mockVersion

	upsertCalls int
	deleteCalls int
	appendCalls int
	closeCalls  int

	failUpsert      error
	failUpsertTimes int // >0 时 failUpsert 只对前 N 次生效
	failDelete      error
	failSelect      error
	failAppend      error

	gate  chan struct{}
	gated int
}

type mockVersion struct {
	at        time.Time
	valueHash string
	blob      []byte
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		rows:     make(map[string][]byte),
		versions: make(map[string][]mockVersion),
	}
}

// waitGate 阻塞闸门配额内的写调用，用于让操作停留在队列或在途状态。
func (m *mockBackend) waitGate(ctx context.Context) error {
	m.mu.Lock()
	if m.gate == nil || m.gated <= 0 {
		m.mu.Unlock()
		return nil
	}
	m.gated--
	gate := m.gate
	m.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockBackend) Upsert(ctx context.Context, hashKey string, blob []byte) error {
	if err := m.waitGate(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if err := m.failUpsert; err != nil {
		if m.failUpsertTimes > 0 {
			m.failUpsertTimes--
			if m.failUpsertTimes == 0 {
				m.failUpsert = nil
			}
		}
		return err
	}
	m.rows[hashKey] = append([]byte(nil), blob...)
	return nil
}

func (m *mockBackend) DeleteAll(ctx context.Context, hashKey string) error {
	if err := m.waitGate(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.rows, hashKey)
	return nil
}

func (m *mockBackend) SelectLatest(_ context.Context, hashKey string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSelect != nil {
		return nil, false, m.failSelect
	}
	if blob, found := m.rows[hashKey]; found {
		return append([]byte(nil), blob...), true, nil
	}
	if vs := m.versions[hashKey]; len(vs) > 0 {
		return append([]byte(nil), vs[len(vs)-1].blob...), true, nil
	}
	return nil, false, nil
}

func (m *mockBackend) SelectLatestHash(_ context.Context, hashKey string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSelect != nil {
		return "", false, m.failSelect
	}
	vs := m.versions[hashKey]
	if len(vs) == 0 {
		return "", false, nil
	}
	return vs[len(vs)-1].valueHash, true, nil
}

func (m *mockBackend) Append(ctx context.Context, hashKey string, at time.Time, valueHash string, blob []byte, replace bool) error {
	if err := m.waitGate(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.failAppend != nil {
		return m.failAppend
	}
	if replace {
		m.versions[hashKey] = nil
	}
	m.versions[hashKey] = append(m.versions[hashKey], mockVersion{
		at:        at,
		valueHash: valueHash,
		blob:      append([]byte(nil), blob...),
	})
	return nil
}

func (m *mockBackend) SelectAsOf(_ context.Context, hashKey string, at time.Time) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSelect != nil {
		return nil, false, m.failSelect
	}
	vs := m.versions[hashKey]
	for i := len(vs) - 1; i >= 0; i-- {
		if !vs[i].at.After(at) {
			return append([]byte(nil), vs[i].blob...), true, nil
		}
	}
	return nil, false, nil
}

func (m *mockBackend) SelectAllVersions(_ context.Context, hashKey string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSelect != nil {
		return nil, m.failSelect
	}
	vs := m.versions[hashKey]
	out := make([][]byte, 0, len(vs))
	for i := len(vs) - 1; i >= 0; i-- {
		out = append(out, append([]byte(nil), vs[i].blob...))
	}
	return out, nil
}

func (m *mockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

// blockWrites 安装阻塞闸门：之后的前 n 次写调用（Upsert/DeleteAll/Append）
// 会阻塞直到调用返回的放行函数。放行函数可安全多次调用。
func (m *mockBackend) blockWrites(n int) func() {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.gated = n
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(gate)
			m.mu.Lock()
			m.gate = nil
			m.gated = 0
			m.mu.Unlock()
		})
	}
}

func (m *mockBackend) setFailUpsert(err error) {
	m.mu.Lock()
	m.failUpsert = err
	m.mu.Unlock()
}

func (m *mockBackend) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

func (m *mockBackend) appendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls
}

func (m *mockBackend) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *mockBackend) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// latest 返回单版本表里指定 key 的当前值。
func (m *mockBackend) latest(hashKey string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, found := m.rows[hashKey]
	return blob, found
}

var (
	_ Backend        = (*mockBackend)(nil)
	_ HistoryBackend = (*mockBackend)(nil)
)
