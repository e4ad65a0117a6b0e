package session

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Factory 调试会话工厂
// 持有执行模型和默认绑定，创建的会话在关闭时自动注销
type Factory struct {
	mu       sync.Mutex
	model    ExecutionModel
	bindings map[string]any
	sessions []*DebugSession
}

func NewFactory(model ExecutionModel) *Factory {
	return &Factory{
		model:    model,
		bindings: make(map[string]any),
	}
}

// SetDefaultBinding 设置默认绑定，之后创建的会话都会带上
func (f *Factory) SetDefaultBinding(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings[name] = value
}

// CreateSession 创建一个带初始断点的调试会话
func (f *Factory) CreateSession(breakPoints []*BreakPoint) *DebugSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	bindings := make(map[string]any, len(f.bindings))
	for name, value := range f.bindings {
		bindings[name] = value
	}
	session := newDebugSession(f, f.model, append([]*BreakPoint{}, breakPoints...), bindings)
	f.sessions = append(f.sessions, session)
	logrus.Infof("[Factory] create debug session with %d breakpoints", len(breakPoints))
	return session
}

// Sessions 返回当前打开会话的快照
func (f *Factory) Sessions() []*DebugSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*DebugSession{}, f.sessions...)
}

// close 注销一个已关闭的会话
func (f *Factory) close(session *DebugSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for index, registered := range f.sessions {
		if registered == session {
			f.sessions = append(f.sessions[:index], f.sessions[index+1:]...)
			return
		}
	}
}
