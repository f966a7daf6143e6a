package ports_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// MockStore is a JSON round-tripping StateStore and MessageStore used to
// exercise the contract suites themselves.
type MockStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	messages []domain.Message
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

func (m *MockStore) Save(_ context.Context, room string, state *domain.ActivityState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[room] = b
	return nil
}

func (m *MockStore) Load(_ context.Context, room string) (*domain.ActivityState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[room]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	var state domain.ActivityState
	return &state, json.Unmarshal(b, &state)
}

func (m *MockStore) Delete(_ context.Context, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, room)
	return nil
}

func (m *MockStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockStore) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = fmt.Sprintf("m%d", len(m.messages)+1)
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *MockStore) History(_ context.Context, room string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.Room == room {
			out = append(out, msg)
		}
	}
	return out, nil
}

func TestStateStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, NewMockStore())
}

func TestMessageStore_Contract(t *testing.T) {
	ports.RunMessageStoreContract(t, NewMockStore())
}

func TestFanout(t *testing.T) {
	var got []string
	record := func(name string) ports.Broadcaster {
		return ports.BroadcasterFunc(func(_ context.Context, event string, _ any, room string) {
			got = append(got, name+":"+event+":"+room)
		})
	}
	ports.Fanout{record("a"), record("b")}.Emit(context.Background(), "chat_message", nil, "r1")
	if len(got) != 2 || got[0] != "a:chat_message:r1" || got[1] != "b:chat_message:r1" {
		t.Fatalf("unexpected fanout order: %v", got)
	}
}
