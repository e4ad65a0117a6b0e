package utils

import "sync"

const (
	// Init 会话初始化状态
	Init = "Init"
	// Open 会话打开，可以接受调试操作
	Open = "open"
	// Closed 会话已经关闭
	Closed = "closed"
)

// StatusManager 记录调试会话的状态的
type StatusManager struct {
	lock   sync.RWMutex
	status string
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: Init,
	}
}

func (s *StatusManager) Set(status string) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Is(statusList ...string) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}
