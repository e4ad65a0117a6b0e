package main

import (
	"fmt"
	"sort"

	"github.com/fansqz/go-debug-session/constants"
	"github.com/fansqz/go-debug-session/session"
	"github.com/fansqz/go-debug-session/session/completion"
	"github.com/fansqz/go-debug-session/utils"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------
// Request Handlers
//
// Each handler translates one DAP request into debug session calls.
// Evaluate and Completions are asynchronous in the session: the handler
// registers the request as pending and the matching session event
// (see the EventListener implementation below) produces the response.

func (a *DebugAdapter) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsCompletionsRequest = true
	response.Body.CompletionTriggerCharacters = []string{"."}
	response.Body.SupportsEvaluateForHovers = false
	response.Body.SupportsFunctionBreakpoints = false
	response.Body.SupportsConditionalBreakpoints = false
	response.Body.SupportsStepBack = false
	response.Body.SupportsSetVariable = false
	response.Body.SupportsRestartRequest = false
	response.Body.SupportsTerminateRequest = false
	response.Body.ExceptionBreakpointFilters = []dap.ExceptionBreakpointsFilter{}
	// Notify the client with an 'initialized' event. The client will end
	// the configuration sequence with 'configurationDone' request.
	a.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	a.send(response)
}

func (a *DebugAdapter) onLaunchRequest(request *dap.LaunchRequest) {
	// 被调试的执行在宿主进程里，launch只需要应答
	response := &dap.LaunchResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	a.send(response)
}

func (a *DebugAdapter) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	response := &dap.ConfigurationDoneResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	a.send(response)
}

// onSetBreakpointsRequest 替换某个源文件的全部断点，其他文件的断点保留
func (a *DebugAdapter) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	file := request.Arguments.Source.Path
	kept := make([]*session.BreakPoint, 0)
	for _, breakPoint := range a.session.GetBreakPoints() {
		if breakPoint.File != file {
			kept = append(kept, breakPoint)
		}
	}
	for _, sourceBreakpoint := range request.Arguments.Breakpoints {
		kept = append(kept, session.NewBreakPoint(file, sourceBreakpoint.Line))
	}
	a.session.SetBreakPoints(kept)

	response := &dap.SetBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Breakpoints = make([]dap.Breakpoint, len(request.Arguments.Breakpoints))
	for i, sourceBreakpoint := range request.Arguments.Breakpoints {
		response.Body.Breakpoints[i].Line = sourceBreakpoint.Line
		response.Body.Breakpoints[i].Verified = true
	}
	a.send(response)
}

func (a *DebugAdapter) onContinueRequest(request *dap.ContinueRequest) {
	if executionID, ok := a.executionID(request.Arguments.ThreadId); ok {
		a.session.ResumeExecution(executionID)
	}
	response := &dap.ContinueResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.AllThreadsContinued = false
	a.send(response)
}

func (a *DebugAdapter) onNextRequest(request *dap.NextRequest) {
	if executionID, ok := a.executionID(request.Arguments.ThreadId); ok {
		a.session.StepExecution(executionID)
	}
	response := &dap.NextResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	a.send(response)
}

// onThreadsRequest 把暂停的执行作为线程返回
func (a *DebugAdapter) onThreadsRequest(request *dap.ThreadsRequest) {
	execs := a.session.GetSuspendedExecutions()
	threads := make([]dap.Thread, 0, len(execs))
	for _, exec := range execs {
		threads = append(threads, dap.Thread{
			Id:   a.threadID(exec.ID()),
			Name: fmt.Sprintf("%s @ %s", exec.Goroutine(), exec.BreakPoint()),
		})
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].Id < threads[j].Id })
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.ThreadsResponseBody{Threads: threads}
	a.send(response)
}

// onStackTraceRequest 每个暂停的执行只有一帧，就是断点位置
func (a *DebugAdapter) onStackTraceRequest(request *dap.StackTraceRequest) {
	exec := a.findExecution(request.Arguments.ThreadId)
	if exec == nil {
		a.send(newErrorResponse(request.Seq, request.Command, "unknown thread"))
		return
	}
	frame := dap.StackFrame{
		Id:     request.Arguments.ThreadId,
		Name:   exec.BreakPoint().String(),
		Line:   exec.BreakPoint().Line,
		Source: &dap.Source{Path: exec.BreakPoint().File},
	}
	response := &dap.StackTraceResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.StackTraceResponseBody{
		StackFrames: []dap.StackFrame{frame},
		TotalFrames: 1,
	}
	a.send(response)
}

// 作用域引用编码：局部=线程id*2，全局=线程id*2+1
func localReference(threadID int) int  { return threadID * 2 }
func globalReference(threadID int) int { return threadID*2 + 1 }

func (a *DebugAdapter) onScopesRequest(request *dap.ScopesRequest) {
	threadID := request.Arguments.FrameId
	response := &dap.ScopesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.ScopesResponseBody{
		Scopes: []dap.Scope{
			{Name: string(constants.ScopeLocal), VariablesReference: localReference(threadID)},
			{Name: string(constants.ScopeGlobal), VariablesReference: globalReference(threadID)},
		},
	}
	a.send(response)
}

func (a *DebugAdapter) onVariablesRequest(request *dap.VariablesRequest) {
	reference := request.Arguments.VariablesReference
	threadID := reference / 2

	var bindings map[string]any
	if reference%2 == 1 {
		bindings = a.session.GlobalBindings()
	} else {
		exec := a.findExecution(threadID)
		if exec == nil {
			a.send(newErrorResponse(request.Seq, request.Command, "unknown variables reference"))
			return
		}
		bindings = exec.Context().Variables()
	}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	variables := make([]dap.Variable, 0, len(names))
	for _, name := range names {
		variables = append(variables, dap.Variable{
			Name:  name,
			Value: fmt.Sprintf("%v", bindings[name]),
			Type:  fmt.Sprintf("%T", bindings[name]),
		})
	}
	response := &dap.VariablesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.VariablesResponseBody{Variables: variables}
	a.send(response)
}

// onEvaluateRequest 把求值转发给会话
// 有frameId就在对应暂停位置的作用域内求值，没有就在会话全局绑定上求值。
// 求值结果通过evaluated/evaluationFailed事件异步到达，先把请求挂起。
func (a *DebugAdapter) onEvaluateRequest(request *dap.EvaluateRequest) {
	correlationID := utils.GetUUID()
	a.mu.Lock()
	a.pendingEvaluations[correlationID] = request
	a.mu.Unlock()

	if request.Arguments.FrameId == 0 {
		a.session.EvaluateGlobalScript(constants.LanguageLua, request.Arguments.Expression, correlationID)
		return
	}
	executionID, ok := a.executionID(request.Arguments.FrameId)
	if !ok {
		a.dropPendingEvaluation(correlationID)
		a.send(newErrorResponse(request.Seq, request.Command, "unknown frame"))
		return
	}
	if err := a.session.EvaluateScript(executionID, constants.LanguageLua, request.Arguments.Expression, correlationID); err != nil {
		a.dropPendingEvaluation(correlationID)
		a.send(newErrorResponse(request.Seq, request.Command, err.Error()))
	}
}

func (a *DebugAdapter) dropPendingEvaluation(correlationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pendingEvaluations, correlationID)
}

func (a *DebugAdapter) takePendingEvaluation(correlationID string) *dap.EvaluateRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	request, ok := a.pendingEvaluations[correlationID]
	if !ok {
		return nil
	}
	delete(a.pendingEvaluations, correlationID)
	return request
}

// onCompletionsRequest 把补全转发给会话，补全事件按请求到达顺序回复
func (a *DebugAdapter) onCompletionsRequest(request *dap.CompletionsRequest) {
	var executionID string
	if request.Arguments.FrameId != 0 {
		id, ok := a.executionID(request.Arguments.FrameId)
		if !ok {
			a.send(newErrorResponse(request.Seq, request.Command, "unknown frame"))
			return
		}
		executionID = id
	}
	a.mu.Lock()
	a.pendingCompletions = append(a.pendingCompletions, request)
	a.mu.Unlock()

	if err := a.session.CompletePartialInput(executionID, request.Arguments.Text); err != nil {
		a.mu.Lock()
		a.pendingCompletions = a.pendingCompletions[:len(a.pendingCompletions)-1]
		a.mu.Unlock()
		a.send(newErrorResponse(request.Seq, request.Command, err.Error()))
	}
}

func (a *DebugAdapter) takePendingCompletion() *dap.CompletionsRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pendingCompletions) == 0 {
		return nil
	}
	request := a.pendingCompletions[0]
	a.pendingCompletions = a.pendingCompletions[1:]
	return request
}

func (a *DebugAdapter) onDisconnectRequest(request *dap.DisconnectRequest) {
	response := &dap.DisconnectResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	a.send(response)
	// 关闭连接让读循环退出，会话继续服务其他客户端
	a.conn.Close()
}

func (a *DebugAdapter) findExecution(threadID int) *session.SuspendedExecution {
	executionID, ok := a.executionID(threadID)
	if !ok {
		return nil
	}
	return a.session.FindSuspendedExecution(executionID)
}

// -----------------------------------------------------------------------
// EventListener
//
// 会话事件到DAP事件的映射。

func (a *DebugAdapter) OnExecutionSuspended(exec *session.SuspendedExecution) {
	threadID := a.threadID(exec.ID())
	threadEvent := &dap.ThreadEvent{Event: *newEvent("thread")}
	threadEvent.Body = dap.ThreadEventBody{Reason: "started", ThreadId: threadID}
	a.send(threadEvent)

	stopped := &dap.StoppedEvent{Event: *newEvent("stopped")}
	stopped.Body = dap.StoppedEventBody{
		Reason:            string(constants.BreakpointStopped),
		Description:       exec.BreakPoint().String(),
		ThreadId:          threadID,
		AllThreadsStopped: false,
	}
	a.send(stopped)
}

func (a *DebugAdapter) OnExecutionUnsuspended(exec *session.SuspendedExecution) {
	a.mu.Lock()
	threadID, ok := a.threadByExec[exec.ID()]
	a.mu.Unlock()
	if !ok {
		return
	}
	continued := &dap.ContinuedEvent{Event: *newEvent("continued")}
	continued.Body = dap.ContinuedEventBody{ThreadId: threadID, AllThreadsContinued: false}
	a.send(continued)

	threadEvent := &dap.ThreadEvent{Event: *newEvent("thread")}
	threadEvent.Body = dap.ThreadEventBody{Reason: "exited", ThreadId: threadID}
	a.send(threadEvent)
	a.releaseThread(exec.ID())
}

func (a *DebugAdapter) OnExecutionUpdated(exec *session.SuspendedExecution) {
	a.mu.Lock()
	threadID, ok := a.threadByExec[exec.ID()]
	a.mu.Unlock()
	if !ok {
		return
	}
	invalidated := &dap.InvalidatedEvent{Event: *newEvent("invalidated")}
	invalidated.Body = dap.InvalidatedEventBody{
		Areas:    []dap.InvalidatedAreas{"variables"},
		ThreadId: threadID,
	}
	a.send(invalidated)
}

func (a *DebugAdapter) OnScriptEvaluated(evaluation *session.DebugScriptEvaluation) {
	request := a.takePendingEvaluation(evaluation.CorrelationID)
	if request == nil {
		return
	}
	response := &dap.EvaluateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.EvaluateResponseBody{Result: fmt.Sprintf("%v", evaluation.Result)}
	a.send(response)
}

func (a *DebugAdapter) OnScriptEvaluationFailed(evaluation *session.DebugScriptEvaluation) {
	request := a.takePendingEvaluation(evaluation.CorrelationID)
	if request == nil {
		return
	}
	a.send(newErrorResponse(request.Seq, request.Command, evaluation.Err.Error()))
}

func (a *DebugAdapter) OnCodeCompletion(hints []*completion.Hint) {
	request := a.takePendingCompletion()
	if request == nil {
		logrus.Warn("[DebugAdapter] completion event without pending request")
		return
	}
	targets := make([]dap.CompletionItem, 0, len(hints))
	for _, hint := range hints {
		targets = append(targets, dap.CompletionItem{
			Label: hint.Text,
			Type:  dap.CompletionItemType(hint.Kind),
		})
	}
	response := &dap.CompletionsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.CompletionsResponseBody{Targets: targets}
	a.send(response)
}

func (a *DebugAdapter) OnException(exception *session.ExecutionException) {
	output := &dap.OutputEvent{Event: *newEvent("output")}
	output.Body = dap.OutputEventBody{
		Category: "stderr",
		Output:   fmt.Sprintf("execution %s failed in %s: %v\n", exception.ExecutionID, exception.Operation, exception.Err),
	}
	a.send(output)
}
