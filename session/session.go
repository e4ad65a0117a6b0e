package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fansqz/go-debug-session/constants"
	e "github.com/fansqz/go-debug-session/error"
	"github.com/fansqz/go-debug-session/session/completion"
	"github.com/fansqz/go-debug-session/session/scripting"
	"github.com/fansqz/go-debug-session/utils"
	"github.com/emirpasic/gods/lists/doublylinkedlist"
	"github.com/sirupsen/logrus"
)

// DebugSession 进程内调试会话
// 工作协程通过Suspend在断点处暂停，控制协程通过Resume/Step/EvaluateScript等操作它们。
// 所有公开方法都是并发安全的。
type DebugSession struct {
	factory *Factory
	model   ExecutionModel

	processMu        sync.RWMutex
	processContextID string

	breakPointsMu sync.RWMutex
	breakPoints   []*BreakPoint

	suspendedMu sync.Mutex
	// suspended 暂停执行列表，最近暂停的在头部
	suspended *doublylinkedlist.List
	// arrival 有新执行暂停时关闭并重建，唤醒所有GetNextSuspendedExecution等待者
	arrival chan struct{}

	listenersMu sync.RWMutex
	listeners   []EventListener

	enginesMu sync.Mutex
	// engines 全局求值使用的引擎，按语言缓存，脚本状态在多次求值之间保留
	engines map[constants.LanguageType]*scripting.Engine

	bindingsMu sync.RWMutex
	bindings   map[string]any

	status *utils.StatusManager
}

func newDebugSession(factory *Factory, model ExecutionModel, breakPoints []*BreakPoint, bindings map[string]any) *DebugSession {
	d := &DebugSession{
		factory:     factory,
		model:       model,
		breakPoints: breakPoints,
		suspended:   doublylinkedlist.New(),
		arrival:     make(chan struct{}),
		engines:     make(map[constants.LanguageType]*scripting.Engine),
		bindings:    bindings,
		status:      utils.NewStatusManager(),
	}
	d.status.Set(utils.Open)
	return d
}

// Suspend 暂停当前协程直到执行被恢复或ctx取消
// 必须在工作协程命中断点时调用，阻塞期间会依次执行排队的调试操作。
// ctx取消视为中断：丢弃剩余操作，正常返回。
func (d *DebugSession) Suspend(ctx context.Context, exec *SuspendedExecution) {
	logrus.Infof("[DebugSession] execution %s suspended at %s", exec.ID(), exec.BreakPoint())

	d.suspendedMu.Lock()
	d.suspended.Prepend(exec)
	close(d.arrival)
	d.arrival = make(chan struct{})
	d.suspendedMu.Unlock()

	d.fireExecutionSuspended(exec)
	defer func() {
		d.suspendedMu.Lock()
		if index := d.findSuspendedLocked(exec.ID()); index >= 0 {
			d.suspended.Remove(index)
		}
		d.suspendedMu.Unlock()
		d.fireExecutionUnsuspended(exec)
	}()

	for {
		// 先把队列排空再判断resume，恢复前排队的操作不会丢
		for {
			operation, ok := exec.takeOperation()
			if !ok {
				break
			}
			operation.Execute(d, exec)
		}
		if exec.IsResumed() {
			logrus.Infof("[DebugSession] execution %s continues", exec.ID())
			return
		}
		select {
		case <-exec.wake:
		case <-ctx.Done():
			logrus.Infof("[DebugSession] execution %s interrupted: %v", exec.ID(), ctx.Err())
			return
		}
	}
}

// GetNextSuspendedExecution 返回最近一次暂停的执行
// 当前没有暂停的执行时阻塞等待，直到有执行暂停或ctx取消
func (d *DebugSession) GetNextSuspendedExecution(ctx context.Context) (*SuspendedExecution, error) {
	for {
		d.suspendedMu.Lock()
		if value, ok := d.suspended.Get(0); ok {
			d.suspendedMu.Unlock()
			return value.(*SuspendedExecution), nil
		}
		arrival := d.arrival
		d.suspendedMu.Unlock()

		select {
		case <-arrival:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// GetSuspendedExecutions 返回当前暂停执行的快照，最近暂停的在前
func (d *DebugSession) GetSuspendedExecutions() []*SuspendedExecution {
	d.suspendedMu.Lock()
	defer d.suspendedMu.Unlock()
	execs := make([]*SuspendedExecution, 0, d.suspended.Size())
	it := d.suspended.Iterator()
	for it.Next() {
		execs = append(execs, it.Value().(*SuspendedExecution))
	}
	return execs
}

// FindSuspendedExecution 按id查找暂停执行，找不到返回nil
func (d *DebugSession) FindSuspendedExecution(executionID string) *SuspendedExecution {
	d.suspendedMu.Lock()
	defer d.suspendedMu.Unlock()
	if index := d.findSuspendedLocked(executionID); index >= 0 {
		value, _ := d.suspended.Get(index)
		return value.(*SuspendedExecution)
	}
	return nil
}

// findSuspendedLocked 返回executionID在暂停列表中的下标，需持有suspendedMu
func (d *DebugSession) findSuspendedLocked(executionID string) int {
	it := d.suspended.Iterator()
	for it.Next() {
		if it.Value().(*SuspendedExecution).ID() == executionID {
			return it.Index()
		}
	}
	return -1
}

// ResumeExecution 恢复某个暂停的执行，未知id静默忽略
func (d *DebugSession) ResumeExecution(executionID string) {
	if exec := d.FindSuspendedExecution(executionID); exec != nil {
		exec.Resume()
	}
}

// StepExecution 单步恢复某个暂停的执行，未知id静默忽略
func (d *DebugSession) StepExecution(executionID string) {
	if exec := d.FindSuspendedExecution(executionID); exec != nil {
		exec.Step()
	}
}

// EvaluateScript 向某个暂停执行排队一次脚本求值
// 结果通过evaluated/evaluationFailed事件异步返回，correlationID用于匹配
func (d *DebugSession) EvaluateScript(executionID string, language constants.LanguageType, source string, correlationID string) error {
	if d.status.Is(utils.Closed) {
		return e.ErrSessionClosed
	}
	exec := d.FindSuspendedExecution(executionID)
	if exec == nil {
		return fmt.Errorf("evaluate script on execution %s fail: %w", executionID, e.ErrNoSuspendedExecution)
	}
	return exec.AddDebugOperation(&ScriptEvaluationOperation{
		Language:      language,
		Source:        source,
		CorrelationID: correlationID,
	})
}

// EvaluateGlobalScript 在会话的全局绑定上求值一段脚本，不依赖任何暂停执行
// 同语言的多次全局求值共享同一个引擎，脚本里创建的变量会保留下来
func (d *DebugSession) EvaluateGlobalScript(language constants.LanguageType, source string, correlationID string) {
	evaluation := NewDebugScriptEvaluation(language, source, correlationID)
	if d.status.Is(utils.Closed) {
		evaluation.Err = e.ErrSessionClosed
		d.fireScriptEvaluationFailed(evaluation)
		return
	}
	result, err := d.evaluateGlobally(language, source)
	if err != nil {
		evaluation.Err = scripting.Cause(err)
		d.fireScriptEvaluationFailed(evaluation)
		return
	}
	evaluation.Result = result
	d.fireScriptEvaluated(evaluation)
}

// CompletePartialInput 代码补全，结果通过codeCompletion事件异步返回
// executionID非空时在对应暂停位置的作用域内补全，为空时只基于会话共享绑定补全
func (d *DebugSession) CompletePartialInput(executionID string, prefix string) error {
	if d.status.Is(utils.Closed) {
		return e.ErrSessionClosed
	}
	if executionID == "" {
		completer := completion.NewBuilder().Bindings(d.GlobalBindings()).BuildCompleter()
		d.fireCodeCompletion(completer.Complete(prefix))
		return nil
	}
	exec := d.FindSuspendedExecution(executionID)
	if exec == nil {
		return fmt.Errorf("complete input on execution %s fail: %w", executionID, e.ErrNoSuspendedExecution)
	}
	return exec.AddDebugOperation(&CodeCompletionOperation{Prefix: prefix})
}

// evaluateInScope 在暂停位置的作用域内求值，每次使用新引擎，scope变量不会泄漏
func (d *DebugSession) evaluateInScope(language constants.LanguageType, source string, scope map[string]any) (any, error) {
	executable, err := scripting.CreateScriptFromSource(language, source)
	if err != nil {
		return nil, err
	}
	engine, err := scripting.NewEngine(language)
	if err != nil {
		return nil, err
	}
	defer engine.Close()
	return engine.Execute(executable, scope, d.GlobalBindings())
}

// evaluateGlobally 使用按语言缓存的引擎求值，成功后回写全局绑定
func (d *DebugSession) evaluateGlobally(language constants.LanguageType, source string) (any, error) {
	executable, err := scripting.CreateScriptFromSource(language, source)
	if err != nil {
		return nil, err
	}
	engine, err := d.engineForLanguage(language)
	if err != nil {
		return nil, err
	}
	result, err := engine.Execute(executable, nil, d.GlobalBindings())
	if err != nil {
		return nil, err
	}
	d.syncGlobalBindings(engine)
	return result, nil
}

func (d *DebugSession) engineForLanguage(language constants.LanguageType) (*scripting.Engine, error) {
	d.enginesMu.Lock()
	defer d.enginesMu.Unlock()
	if engine, ok := d.engines[language]; ok {
		return engine, nil
	}
	engine, err := scripting.NewEngine(language)
	if err != nil {
		return nil, err
	}
	d.engines[language] = engine
	return engine, nil
}

// syncGlobalBindings 把引擎中同名全局变量的新值回写到会话绑定
func (d *DebugSession) syncGlobalBindings(engine *scripting.Engine) {
	d.bindingsMu.Lock()
	defer d.bindingsMu.Unlock()
	for name := range d.bindings {
		if value, ok := engine.Global(name); ok {
			d.bindings[name] = value
		}
	}
}

// AddBreakPoint 注册一个断点
func (d *DebugSession) AddBreakPoint(breakPoint *BreakPoint) {
	d.breakPointsMu.Lock()
	defer d.breakPointsMu.Unlock()
	d.breakPoints = append(d.breakPoints, breakPoint)
	logrus.Infof("[DebugSession] add breakpoint %s at %s", breakPoint.ID, breakPoint)
}

// SetBreakPoints 原子替换全部断点
func (d *DebugSession) SetBreakPoints(breakPoints []*BreakPoint) {
	ids := make([]string, 0, len(breakPoints))
	for _, breakPoint := range breakPoints {
		ids = append(ids, breakPoint.ID)
	}
	if utils.List2set(ids).Size() != len(ids) {
		logrus.Warnf("[DebugSession] duplicate breakpoint ids in %v", ids)
	}
	d.breakPointsMu.Lock()
	defer d.breakPointsMu.Unlock()
	d.breakPoints = append([]*BreakPoint{}, breakPoints...)
}

// RemoveBreakPoint 按id移除断点，空id返回错误，未知id静默忽略
func (d *DebugSession) RemoveBreakPoint(breakPointID string) error {
	if breakPointID == "" {
		return e.ErrBreakpointIDRequired
	}
	d.breakPointsMu.Lock()
	defer d.breakPointsMu.Unlock()
	for index, breakPoint := range d.breakPoints {
		if breakPoint.ID == breakPointID {
			d.breakPoints = append(d.breakPoints[:index], d.breakPoints[index+1:]...)
			return nil
		}
	}
	return nil
}

// GetBreakPoints 返回当前断点的快照
func (d *DebugSession) GetBreakPoints() []*BreakPoint {
	d.breakPointsMu.RLock()
	defer d.breakPointsMu.RUnlock()
	return append([]*BreakPoint{}, d.breakPoints...)
}

// RegisterEventListener 注册事件监听器
func (d *DebugSession) RegisterEventListener(listener EventListener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// UnregisterEventListener 按恒等比较移除监听器
func (d *DebugSession) UnregisterEventListener(listener EventListener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	for index, registered := range d.listeners {
		if registered == listener {
			d.listeners = append(d.listeners[:index], d.listeners[index+1:]...)
			return
		}
	}
}

// eachListener 向所有监听器广播，单个监听器panic不影响其他监听器
func (d *DebugSession) eachListener(notify func(listener EventListener)) {
	d.listenersMu.RLock()
	listeners := append([]EventListener{}, d.listeners...)
	d.listenersMu.RUnlock()
	for _, listener := range listeners {
		func() {
			defer func() {
				if err := recover(); err != nil {
					logrus.Warnf("[DebugSession] event listener panic: %v", err)
				}
			}()
			notify(listener)
		}()
	}
}

func (d *DebugSession) fireExecutionSuspended(exec *SuspendedExecution) {
	d.eachListener(func(listener EventListener) { listener.OnExecutionSuspended(exec) })
}

func (d *DebugSession) fireExecutionUnsuspended(exec *SuspendedExecution) {
	d.eachListener(func(listener EventListener) { listener.OnExecutionUnsuspended(exec) })
}

// FireExecutionUpdated 通知监听器某个暂停执行的上下文被修改了
// 上下文的修改由宿主完成，核心只负责广播
func (d *DebugSession) FireExecutionUpdated(exec *SuspendedExecution) {
	d.eachListener(func(listener EventListener) { listener.OnExecutionUpdated(exec) })
}

func (d *DebugSession) fireScriptEvaluated(evaluation *DebugScriptEvaluation) {
	d.eachListener(func(listener EventListener) { listener.OnScriptEvaluated(evaluation) })
}

func (d *DebugSession) fireScriptEvaluationFailed(evaluation *DebugScriptEvaluation) {
	d.eachListener(func(listener EventListener) { listener.OnScriptEvaluationFailed(evaluation) })
}

func (d *DebugSession) fireCodeCompletion(hints []*completion.Hint) {
	d.eachListener(func(listener EventListener) { listener.OnCodeCompletion(hints) })
}

// ReportException 上报被调试执行抛出的异常
func (d *DebugSession) ReportException(err error, executionID string, operation string) {
	logrus.Warnf("[DebugSession] execution %s exception in %s: %v", executionID, operation, err)
	exception := &ExecutionException{Err: err, ExecutionID: executionID, Operation: operation}
	d.eachListener(func(listener EventListener) { listener.OnException(exception) })
}

// ProcessContextID 会话关联的流程实例id
func (d *DebugSession) ProcessContextID() string {
	d.processMu.RLock()
	defer d.processMu.RUnlock()
	return d.processContextID
}

func (d *DebugSession) SetProcessContextID(processContextID string) {
	d.processMu.Lock()
	defer d.processMu.Unlock()
	d.processContextID = processContextID
}

// GetScript 读取执行模型中某个活动的脚本
func (d *DebugSession) GetScript(processDefinitionID string, activityID string) (*scripting.Script, error) {
	return d.model.GetScript(processDefinitionID, activityID)
}

// UpdateScript 替换执行模型中某个脚本活动的源码
func (d *DebugSession) UpdateScript(processDefinitionID string, activityID string, script *scripting.Script) error {
	return d.model.UpdateScript(processDefinitionID, activityID, script)
}

// SetGlobalBinding 设置一个会话共享绑定
func (d *DebugSession) SetGlobalBinding(name string, value any) {
	d.bindingsMu.Lock()
	defer d.bindingsMu.Unlock()
	d.bindings[name] = value
}

// GlobalBindings 返回会话共享绑定的快照
func (d *DebugSession) GlobalBindings() map[string]any {
	d.bindingsMu.RLock()
	defer d.bindingsMu.RUnlock()
	bindings := make(map[string]any, len(d.bindings))
	for name, value := range d.bindings {
		bindings[name] = value
	}
	return bindings
}

// IsClosed 会话是否已经关闭
func (d *DebugSession) IsClosed() bool {
	return d.status.Is(utils.Closed)
}

// Close 关闭会话并释放脚本引擎，幂等
// 关闭后的会话拒绝新的调试操作，已暂停的执行需要宿主自行恢复或中断
func (d *DebugSession) Close() {
	if d.status.Is(utils.Closed) {
		return
	}
	d.status.Set(utils.Closed)
	logrus.Info("[DebugSession] session closed")

	d.enginesMu.Lock()
	for language, engine := range d.engines {
		engine.Close()
		delete(d.engines, language)
	}
	d.enginesMu.Unlock()

	if d.factory != nil {
		d.factory.close(d)
	}
}
