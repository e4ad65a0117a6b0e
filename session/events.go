package session

import (
	"github.com/fansqz/go-debug-session/constants"
	"github.com/fansqz/go-debug-session/session/completion"
)

// EventListener 调试事件监听器
// 会话向所有注册的监听器广播事件，单个监听器出错不会影响其他监听器
type EventListener interface {
	// OnExecutionSuspended 某个执行在断点处暂停
	OnExecutionSuspended(exec *SuspendedExecution)
	// OnExecutionUnsuspended 某个执行恢复运行（或被中断）
	OnExecutionUnsuspended(exec *SuspendedExecution)
	// OnExecutionUpdated 某个暂停执行的上下文被修改
	OnExecutionUpdated(exec *SuspendedExecution)
	// OnScriptEvaluated 脚本求值成功
	OnScriptEvaluated(evaluation *DebugScriptEvaluation)
	// OnScriptEvaluationFailed 脚本求值失败
	OnScriptEvaluationFailed(evaluation *DebugScriptEvaluation)
	// OnCodeCompletion 代码补全结果
	OnCodeCompletion(hints []*completion.Hint)
	// OnException 被调试执行抛出了异常
	OnException(exception *ExecutionException)
}

// DebugScriptEvaluation 一次脚本求值的结果记录
// Result和Err只会设置其中一个，CorrelationID用于控制端匹配异步回复
type DebugScriptEvaluation struct {
	Language      constants.LanguageType `json:"language"`
	Source        string                 `json:"source"`
	CorrelationID string                 `json:"correlationId"`
	Result        any                    `json:"result,omitempty"`
	Err           error                  `json:"-"`
}

func NewDebugScriptEvaluation(language constants.LanguageType, source string, correlationID string) *DebugScriptEvaluation {
	return &DebugScriptEvaluation{
		Language:      language,
		Source:        source,
		CorrelationID: correlationID,
	}
}

// ExecutionException 被监控执行抛出的异常信息
type ExecutionException struct {
	Err         error
	ExecutionID string
	Operation   string
}

// NotificationCallback 事件回调
type NotificationCallback func(event any)

// ExecutionEvent 暂停生命周期事件，回调监听器使用
type ExecutionEvent struct {
	Event     constants.DebugEventType
	Execution *SuspendedExecution
}

// EvaluationEvent 脚本求值事件，回调监听器使用
type EvaluationEvent struct {
	Event      constants.DebugEventType
	Evaluation *DebugScriptEvaluation
}

// CompletionEvent 代码补全事件，回调监听器使用
type CompletionEvent struct {
	Event constants.DebugEventType
	Hints []*completion.Hint
}

// callbackListener 把EventListener适配成单个回调函数
type callbackListener struct {
	callback NotificationCallback
}

// NewCallbackListener 创建基于回调的监听器，所有事件都会包装成带事件类型的结构体传给callback
func NewCallbackListener(callback NotificationCallback) EventListener {
	return &callbackListener{callback: callback}
}

func (c *callbackListener) OnExecutionSuspended(exec *SuspendedExecution) {
	c.callback(&ExecutionEvent{Event: constants.SuspendedEvent, Execution: exec})
}

func (c *callbackListener) OnExecutionUnsuspended(exec *SuspendedExecution) {
	c.callback(&ExecutionEvent{Event: constants.UnsuspendedEvent, Execution: exec})
}

func (c *callbackListener) OnExecutionUpdated(exec *SuspendedExecution) {
	c.callback(&ExecutionEvent{Event: constants.UpdatedEvent, Execution: exec})
}

func (c *callbackListener) OnScriptEvaluated(evaluation *DebugScriptEvaluation) {
	c.callback(&EvaluationEvent{Event: constants.EvaluatedEvent, Evaluation: evaluation})
}

func (c *callbackListener) OnScriptEvaluationFailed(evaluation *DebugScriptEvaluation) {
	c.callback(&EvaluationEvent{Event: constants.EvaluationFailedEvent, Evaluation: evaluation})
}

func (c *callbackListener) OnCodeCompletion(hints []*completion.Hint) {
	c.callback(&CompletionEvent{Event: constants.CodeCompletionEvent, Hints: hints})
}

func (c *callbackListener) OnException(exception *ExecutionException) {
	c.callback(exception)
}
