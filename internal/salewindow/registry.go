package salewindow

import (
	"errors"
	"sync"

	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
)

type machineKey struct {
	eventID uuid.UUID
	userID  string
}

// Registry 每個 (event, user) 只保留一個存活的狀態機，新連線會取代舊的
type Registry struct {
	mu       sync.Mutex
	machines map[machineKey]*Machine
}

func NewRegistry() *Registry {
	return &Registry{machines: make(map[machineKey]*Machine)}
}

// Open 登記狀態機並關閉同一使用者先前的狀態機
func (r *Registry) Open(m *Machine) {
	key := machineKey{eventID: m.EventID(), userID: m.UserID()}

	r.mu.Lock()
	prev := r.machines[key]
	r.machines[key] = m
	r.mu.Unlock()

	if prev != nil && prev != m {
		prev.Close()
	}
}

// Release 連線結束時移除；若已被新的狀態機取代則不動
func (r *Registry) Release(m *Machine) {
	key := machineKey{eventID: m.EventID(), userID: m.UserID()}

	r.mu.Lock()
	if r.machines[key] == m {
		delete(r.machines, key)
	}
	r.mu.Unlock()

	m.Close()
}

// Complete 付款成功後通知存活中的狀態機；沒有連線時直接略過
func (r *Registry) Complete(eventID uuid.UUID, userID string) error {
	r.mu.Lock()
	m := r.machines[machineKey{eventID: eventID, userID: userID}]
	r.mu.Unlock()

	if m == nil {
		return nil
	}
	err := m.Complete()
	if errors.Is(err, apperrors.ErrInvalidTransition) {
		return m.completeQueued()
	}
	return err
}

func (r *Registry) Get(eventID uuid.UUID, userID string) (*Machine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineKey{eventID: eventID, userID: userID}]
	return m, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.machines)
}
