package constants

// DebugEventType 调试事件类型
// 调试会话通过监听器向外广播的七类事件
type DebugEventType string

const (
	SuspendedEvent        DebugEventType = "suspended"
	UnsuspendedEvent      DebugEventType = "unsuspended"
	UpdatedEvent          DebugEventType = "updated"
	EvaluatedEvent        DebugEventType = "evaluated"
	EvaluationFailedEvent DebugEventType = "evaluationFailed"
	CodeCompletionEvent   DebugEventType = "codeCompletion"
	ExceptionEvent        DebugEventType = "exception"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	BreakpointStopped StoppedReasonType = "breakpoint"
	StepStopped       StoppedReasonType = "step"
)

// ScopeName 作用域名称
type ScopeName string

// Local: 暂停位置可见的执行变量。
// Global: 会话共享绑定，全局求值时可见。
const (
	ScopeLocal  ScopeName = "local"
	ScopeGlobal ScopeName = "global"
)
