package session

import (
	"sync"

	e "github.com/fansqz/go-debug-session/error"
	"github.com/fansqz/go-debug-session/utils"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// SuspendedExecution 一次暂停的执行
// 工作协程在断点处决定暂停时创建，Suspend返回的瞬间销毁。
// 状态机：Active -> Suspended -> Resumed，resumed只会从false翻转到true一次。
type SuspendedExecution struct {
	id         string
	breakPoint *BreakPoint
	goroutine  string
	execCtx    ExecutionContext

	mu       sync.Mutex
	resumed  bool
	stepping bool
	// operations 等待在暂停协程上执行的调试操作，严格FIFO
	operations *linkedlistqueue.Queue
	// wake 容量1的唤醒通道，通知合并不会丢
	wake chan struct{}
}

// NewSuspendedExecution 创建暂停执行，必须在即将暂停的工作协程上调用
func NewSuspendedExecution(breakPoint *BreakPoint, execCtx ExecutionContext) *SuspendedExecution {
	return &SuspendedExecution{
		id:         utils.GetUUID(),
		breakPoint: breakPoint,
		goroutine:  utils.GetGoroutineLabel(),
		execCtx:    execCtx,
		operations: linkedlistqueue.New(),
		wake:       make(chan struct{}, 1),
	}
}

func (s *SuspendedExecution) ID() string {
	return s.id
}

func (s *SuspendedExecution) BreakPoint() *BreakPoint {
	return s.breakPoint
}

// Goroutine 暂停的协程标识
func (s *SuspendedExecution) Goroutine() string {
	return s.goroutine
}

func (s *SuspendedExecution) Context() ExecutionContext {
	return s.execCtx
}

func (s *SuspendedExecution) IsResumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

// IsStepping 是否是单步恢复，重新触发暂停由宿主的执行引擎负责
func (s *SuspendedExecution) IsStepping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepping
}

// Resume 恢复执行，幂等
func (s *SuspendedExecution) Resume() {
	s.mu.Lock()
	s.resumed = true
	s.mu.Unlock()
	s.notify()
}

// Step 单步恢复，除了恢复执行还会标记单步意图
func (s *SuspendedExecution) Step() {
	s.mu.Lock()
	s.resumed = true
	s.stepping = true
	s.mu.Unlock()
	s.notify()
}

// AddDebugOperation 向暂停的执行排队一个调试操作
// 已经resume的执行会返回ErrExecutionResumed，不允许操作静默丢失
func (s *SuspendedExecution) AddDebugOperation(operation DebugOperation) error {
	s.mu.Lock()
	if s.resumed {
		s.mu.Unlock()
		return e.ErrExecutionResumed
	}
	s.operations.Enqueue(operation)
	s.mu.Unlock()
	s.notify()
	return nil
}

// PendingOperations 当前排队中的操作数量
func (s *SuspendedExecution) PendingOperations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operations.Size()
}

// takeOperation 取出队头操作，只能由暂停协程调用
func (s *SuspendedExecution) takeOperation() (DebugOperation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.operations.Dequeue()
	if !ok {
		return nil, false
	}
	return value.(DebugOperation), true
}

func (s *SuspendedExecution) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
