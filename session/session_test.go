package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fansqz/go-debug-session/constants"
	e "github.com/fansqz/go-debug-session/error"
	"github.com/stretchr/testify/assert"
)

func newTestSession() (*Factory, *DebugSession, chan any) {
	factory := NewFactory(NewInMemoryExecutionModel())
	session := factory.CreateSession(nil)
	cha := make(chan any, 32)
	session.RegisterEventListener(NewCallbackListener(func(event any) { cha <- event }))
	return factory, session, cha
}

// orderedOperation 测试用操作，执行时把token写入通道
type orderedOperation struct {
	token string
	cha   chan string
}

func (o *orderedOperation) Name() string { return "ordered" }

func (o *orderedOperation) Execute(session *DebugSession, exec *SuspendedExecution) {
	o.cha <- o.token
}

func TestSuspendAndResume(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	done := make(chan struct{})
	go func() {
		session.Suspend(context.Background(), exec)
		close(done)
	}()

	// 暂停事件
	suspended := (<-cha).(*ExecutionEvent)
	assert.Equal(t, constants.SuspendedEvent, suspended.Event)
	assert.Equal(t, exec.ID(), suspended.Execution.ID())

	next, err := session.GetNextSuspendedExecution(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, exec.ID(), next.ID())

	// 恢复后Suspend返回，恢复事件只发一次
	session.ResumeExecution(exec.ID())
	unsuspended := (<-cha).(*ExecutionEvent)
	assert.Equal(t, constants.UnsuspendedEvent, unsuspended.Event)
	<-done
	assert.Empty(t, session.GetSuspendedExecutions())
	assert.Empty(t, cha)
}

func TestOperationsExecuteInOrder(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	done := make(chan struct{})
	go func() {
		session.Suspend(context.Background(), exec)
		close(done)
	}()
	<-cha // suspended

	order := make(chan string, 8)
	assert.Nil(t, exec.AddDebugOperation(&orderedOperation{token: "first", cha: order}))
	assert.Nil(t, exec.AddDebugOperation(&orderedOperation{token: "second", cha: order}))
	assert.Nil(t, exec.AddDebugOperation(&orderedOperation{token: "third", cha: order}))

	assert.Equal(t, "first", <-order)
	assert.Equal(t, "second", <-order)
	assert.Equal(t, "third", <-order)

	session.ResumeExecution(exec.ID())
	<-done
}

func TestOperationsQueuedBeforeResumeStillExecute(t *testing.T) {
	_, session, _ := newTestSession()
	defer session.Close()

	// 恢复前排队的操作在Suspend开始时全部执行，不会丢
	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	order := make(chan string, 8)
	assert.Nil(t, exec.AddDebugOperation(&orderedOperation{token: "first", cha: order}))
	assert.Nil(t, exec.AddDebugOperation(&orderedOperation{token: "second", cha: order}))
	exec.Resume()

	session.Suspend(context.Background(), exec)
	assert.Equal(t, "first", <-order)
	assert.Equal(t, "second", <-order)
	assert.Equal(t, 0, exec.PendingOperations())
}

func TestAddOperationAfterResume(t *testing.T) {
	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	exec.Resume()
	err := exec.AddDebugOperation(&orderedOperation{token: "late", cha: make(chan string, 1)})
	assert.True(t, errors.Is(err, e.ErrExecutionResumed))
}

func TestTwoExecutionsResumeIndependently(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	first := NewSuspendedExecution(NewBreakPoint("a.lua", 1), MapContext{})
	firstDone := make(chan struct{})
	go func() {
		session.Suspend(context.Background(), first)
		close(firstDone)
	}()
	<-cha

	second := NewSuspendedExecution(NewBreakPoint("b.lua", 2), MapContext{})
	secondDone := make(chan struct{})
	go func() {
		session.Suspend(context.Background(), second)
		close(secondDone)
	}()
	<-cha

	// 最近暂停的在前
	execs := session.GetSuspendedExecutions()
	assert.Equal(t, 2, len(execs))
	assert.Equal(t, second.ID(), execs[0].ID())
	assert.Equal(t, first.ID(), execs[1].ID())

	// 先恢复后暂停的，另一个不受影响
	session.ResumeExecution(second.ID())
	<-secondDone
	<-cha
	assert.Equal(t, 1, len(session.GetSuspendedExecutions()))
	assert.False(t, first.IsResumed())

	session.ResumeExecution(first.ID())
	<-firstDone
	<-cha
	assert.Empty(t, session.GetSuspendedExecutions())
}

func TestStepExecution(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	done := make(chan struct{})
	go func() {
		session.Suspend(context.Background(), exec)
		close(done)
	}()
	<-cha

	session.StepExecution(exec.ID())
	<-done
	assert.True(t, exec.IsResumed())
	assert.True(t, exec.IsStepping())
}

func TestSuspendInterruptedByContext(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	done := make(chan struct{})
	go func() {
		session.Suspend(ctx, exec)
		close(done)
	}()
	<-cha

	// 中断时不resume也会返回，并发出恢复事件
	cancel()
	<-done
	unsuspended := (<-cha).(*ExecutionEvent)
	assert.Equal(t, constants.UnsuspendedEvent, unsuspended.Event)
	assert.Empty(t, session.GetSuspendedExecutions())
}

func TestGetNextSuspendedExecutionWaits(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	type result struct {
		exec *SuspendedExecution
		err  error
	}
	got := make(chan result, 1)
	go func() {
		exec, err := session.GetNextSuspendedExecution(context.Background())
		got <- result{exec, err}
	}()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	go session.Suspend(context.Background(), exec)
	<-cha

	r := <-got
	assert.Nil(t, r.err)
	assert.Equal(t, exec.ID(), r.exec.ID())
	session.ResumeExecution(exec.ID())
}

func TestGetNextSuspendedExecutionContextCancelled(t *testing.T) {
	_, session, _ := newTestSession()
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	exec, err := session.GetNextSuspendedExecution(ctx)
	assert.Nil(t, exec)
	assert.NotNil(t, err)
}

func TestEvaluateScriptOnSuspendedExecution(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{"a": 1})
	done := make(chan struct{})
	go func() {
		session.Suspend(context.Background(), exec)
		close(done)
	}()

	suspended := (<-cha).(*ExecutionEvent)
	assert.Equal(t, constants.SuspendedEvent, suspended.Event)

	err := session.EvaluateScript(exec.ID(), constants.LanguageLua, "a + 1", "corr-1")
	assert.Nil(t, err)

	evaluated := (<-cha).(*EvaluationEvent)
	assert.Equal(t, constants.EvaluatedEvent, evaluated.Event)
	assert.Equal(t, "corr-1", evaluated.Evaluation.CorrelationID)
	assert.Equal(t, int64(2), evaluated.Evaluation.Result)

	session.ResumeExecution(exec.ID())
	unsuspended := (<-cha).(*ExecutionEvent)
	assert.Equal(t, constants.UnsuspendedEvent, unsuspended.Event)
	<-done
}

func TestEvaluateScriptFailure(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	go session.Suspend(context.Background(), exec)
	<-cha

	err := session.EvaluateScript(exec.ID(), constants.LanguageLua, "error('boom')", "corr-2")
	assert.Nil(t, err)

	failed := (<-cha).(*EvaluationEvent)
	assert.Equal(t, constants.EvaluationFailedEvent, failed.Event)
	assert.Equal(t, "corr-2", failed.Evaluation.CorrelationID)
	assert.NotNil(t, failed.Evaluation.Err)
	session.ResumeExecution(exec.ID())
}

func TestEvaluateScriptUnknownExecution(t *testing.T) {
	_, session, _ := newTestSession()
	defer session.Close()

	err := session.EvaluateScript("no-such-id", constants.LanguageLua, "1 + 1", "corr-3")
	assert.True(t, errors.Is(err, e.ErrNoSuspendedExecution))
}

func TestEvaluateGlobalScript(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	session.SetGlobalBinding("counter", 1)
	session.EvaluateGlobalScript(constants.LanguageLua, "counter = counter + 1", "corr-4")
	assert.Equal(t, constants.EvaluatedEvent, (<-cha).(*EvaluationEvent).Event)

	// 全局引擎有状态，绑定的新值保留下来
	session.EvaluateGlobalScript(constants.LanguageLua, "counter", "corr-5")
	evaluated := (<-cha).(*EvaluationEvent)
	assert.Equal(t, int64(2), evaluated.Evaluation.Result)
	assert.Equal(t, int64(2), session.GlobalBindings()["counter"])
}

func TestEvaluateGlobalScriptUnsupportedLanguage(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	session.EvaluateGlobalScript(constants.LanguageGroovy, "1 + 1", "corr-6")
	failed := (<-cha).(*EvaluationEvent)
	assert.Equal(t, constants.EvaluationFailedEvent, failed.Event)
	assert.True(t, errors.Is(failed.Evaluation.Err, e.ErrLanguageNotSupported))
}

func TestCodeCompletionOnSuspendedExecution(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	session.SetGlobalBinding("amount", 10)
	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{"assignee": "kermit"})
	go session.Suspend(context.Background(), exec)
	<-cha

	assert.Nil(t, session.CompletePartialInput(exec.ID(), "a"))
	completionEvent := (<-cha).(*CompletionEvent)
	assert.Equal(t, constants.CodeCompletionEvent, completionEvent.Event)
	texts := make([]string, 0)
	for _, hint := range completionEvent.Hints {
		texts = append(texts, hint.Text)
	}
	assert.Equal(t, []string{"amount", "assignee"}, texts)
	session.ResumeExecution(exec.ID())
}

func TestGlobalCodeCompletion(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	session.SetGlobalBinding("amount", 10)
	session.SetGlobalBinding("assignee", "kermit")

	// 不指定执行，只基于共享绑定补全
	assert.Nil(t, session.CompletePartialInput("", "am"))
	completionEvent := (<-cha).(*CompletionEvent)
	assert.Equal(t, 1, len(completionEvent.Hints))
	assert.Equal(t, "amount", completionEvent.Hints[0].Text)

	err := session.CompletePartialInput("no-such-id", "am")
	assert.True(t, errors.Is(err, e.ErrNoSuspendedExecution))
}

func TestBreakPointManagement(t *testing.T) {
	_, session, _ := newTestSession()
	defer session.Close()

	first := NewBreakPoint("a.lua", 1)
	second := NewBreakPoint("b.lua", 2)
	session.AddBreakPoint(first)
	session.AddBreakPoint(second)
	assert.Equal(t, 2, len(session.GetBreakPoints()))

	// 空id报错，未知id静默忽略
	assert.True(t, errors.Is(session.RemoveBreakPoint(""), e.ErrBreakpointIDRequired))
	assert.Nil(t, session.RemoveBreakPoint("no-such-id"))
	assert.Equal(t, 2, len(session.GetBreakPoints()))

	assert.Nil(t, session.RemoveBreakPoint(first.ID))
	breakPoints := session.GetBreakPoints()
	assert.Equal(t, 1, len(breakPoints))
	assert.Equal(t, second.ID, breakPoints[0].ID)

	// 原子替换
	replaced := []*BreakPoint{NewBreakPoint("c.lua", 3)}
	session.SetBreakPoints(replaced)
	assert.Equal(t, 1, len(session.GetBreakPoints()))
	assert.Equal(t, replaced[0].ID, session.GetBreakPoints()[0].ID)
}

func TestListenerPanicIsolation(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	// 第一个监听器panic不影响后面的监听器
	session.listenersMu.Lock()
	session.listeners = append([]EventListener{NewCallbackListener(func(event any) {
		panic("listener broken")
	})}, session.listeners...)
	session.listenersMu.Unlock()

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	go session.Suspend(context.Background(), exec)
	suspended := (<-cha).(*ExecutionEvent)
	assert.Equal(t, constants.SuspendedEvent, suspended.Event)
	session.ResumeExecution(exec.ID())
	<-cha
}

func TestUnregisterEventListener(t *testing.T) {
	_, session, events := newTestSession()
	defer session.Close()

	cha := make(chan any, 8)
	listener := NewCallbackListener(func(event any) { cha <- event })
	session.RegisterEventListener(listener)
	session.UnregisterEventListener(listener)

	exec := NewSuspendedExecution(NewBreakPoint("demo.lua", 3), MapContext{})
	go session.Suspend(context.Background(), exec)
	<-events
	session.ResumeExecution(exec.ID())
	<-events
	assert.Empty(t, cha)
}

func TestReportException(t *testing.T) {
	_, session, cha := newTestSession()
	defer session.Close()

	cause := errors.New("script task failed")
	session.ReportException(cause, "execution-1", "service task")
	exception := (<-cha).(*ExecutionException)
	assert.Equal(t, cause, exception.Err)
	assert.Equal(t, "execution-1", exception.ExecutionID)
	assert.Equal(t, "service task", exception.Operation)
}

func TestSessionClosedRejectsOperations(t *testing.T) {
	factory, session, cha := newTestSession()
	session.Close()

	assert.True(t, session.IsClosed())
	assert.True(t, errors.Is(session.EvaluateScript("id", constants.LanguageLua, "1", "c"), e.ErrSessionClosed))
	assert.True(t, errors.Is(session.CompletePartialInput("id", "a"), e.ErrSessionClosed))

	session.EvaluateGlobalScript(constants.LanguageLua, "1 + 1", "corr-7")
	failed := (<-cha).(*EvaluationEvent)
	assert.Equal(t, constants.EvaluationFailedEvent, failed.Event)
	assert.True(t, errors.Is(failed.Evaluation.Err, e.ErrSessionClosed))

	// 关闭后从工厂注销，重复关闭幂等
	assert.Empty(t, factory.Sessions())
	session.Close()
}

func TestFactoryDefaultBindings(t *testing.T) {
	factory := NewFactory(NewInMemoryExecutionModel())
	factory.SetDefaultBinding("tenant", "acme")
	session := factory.CreateSession(nil)
	defer session.Close()

	assert.Equal(t, "acme", session.GlobalBindings()["tenant"])

	// 会话内修改绑定不影响工厂默认值
	session.SetGlobalBinding("tenant", "other")
	second := factory.CreateSession(nil)
	defer second.Close()
	assert.Equal(t, "acme", second.GlobalBindings()["tenant"])
}

func TestProcessContextID(t *testing.T) {
	_, session, _ := newTestSession()
	defer session.Close()

	assert.Equal(t, "", session.ProcessContextID())
	session.SetProcessContextID("process-instance-1")
	assert.Equal(t, "process-instance-1", session.ProcessContextID())
}
