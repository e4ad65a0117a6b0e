package session

import (
	"sync"

	e "github.com/fansqz/go-debug-session/error"
	"github.com/fansqz/go-debug-session/session/scripting"
)

// ExecutionContext 宿主提供的暂停上下文
// 脚本求值和代码补全会把这里的变量作为作用域绑定
type ExecutionContext interface {
	Variables() map[string]any
}

// MapContext 基于map的ExecutionContext实现
type MapContext map[string]any

func (m MapContext) Variables() map[string]any {
	return m
}

// ExecutionModel 宿主执行模型
// 会话通过它读取和更新流程定义中脚本活动的源码
type ExecutionModel interface {
	// GetScript 获取某个活动的脚本，活动不是脚本活动时返回ErrNotScriptActivity
	GetScript(processDefinitionID string, activityID string) (*scripting.Script, error)
	// UpdateScript 替换某个脚本活动的源码
	UpdateScript(processDefinitionID string, activityID string, script *scripting.Script) error
}

// InMemoryExecutionModel 内存实现的执行模型，服务端和测试使用
type InMemoryExecutionModel struct {
	mu sync.RWMutex
	// scripts 脚本活动，key是processDefinitionID/activityID
	scripts map[string]*scripting.Script
	// activities 已注册但没有脚本的活动
	activities map[string]bool
}

func NewInMemoryExecutionModel() *InMemoryExecutionModel {
	return &InMemoryExecutionModel{
		scripts:    make(map[string]*scripting.Script),
		activities: make(map[string]bool),
	}
}

// RegisterScriptActivity 注册一个脚本活动
func (m *InMemoryExecutionModel) RegisterScriptActivity(processDefinitionID string, activityID string, script *scripting.Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[activityKey(processDefinitionID, activityID)] = script
}

// RegisterActivity 注册一个非脚本活动
func (m *InMemoryExecutionModel) RegisterActivity(processDefinitionID string, activityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[activityKey(processDefinitionID, activityID)] = true
}

func (m *InMemoryExecutionModel) GetScript(processDefinitionID string, activityID string) (*scripting.Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := activityKey(processDefinitionID, activityID)
	if script, ok := m.scripts[key]; ok {
		copied := *script
		return &copied, nil
	}
	if m.activities[key] {
		return nil, e.ErrNotScriptActivity
	}
	return nil, e.ErrActivityNotFound
}

func (m *InMemoryExecutionModel) UpdateScript(processDefinitionID string, activityID string, script *scripting.Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := activityKey(processDefinitionID, activityID)
	if _, ok := m.scripts[key]; ok {
		copied := *script
		m.scripts[key] = &copied
		return nil
	}
	if m.activities[key] {
		return e.ErrNotScriptActivity
	}
	return e.ErrActivityNotFound
}

func activityKey(processDefinitionID string, activityID string) string {
	return processDefinitionID + "/" + activityID
}
