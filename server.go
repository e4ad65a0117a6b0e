package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/fansqz/go-debug-session/session"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// handleConnection handles a connection from a single client.
// It reads and decodes the incoming data and dispatches it to the
// request handlers. It also launches the sender goroutine to send
// resulting messages over the connection back to the client.
func handleConnection(conn net.Conn, debugSession *session.DebugSession) {
	adapter := &DebugAdapter{
		conn:               conn,
		session:            debugSession,
		rw:                 bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		sendQueue:          make(chan dap.Message, 64),
		threadByExec:       make(map[string]int),
		execByThread:       make(map[int]string),
		pendingEvaluations: make(map[string]*dap.EvaluateRequest),
	}
	// 适配器本身就是事件监听器，会话事件转换成DAP事件推给客户端
	debugSession.RegisterEventListener(adapter)
	adapter.sendWg.Add(1)
	go adapter.sendFromQueue()

	for {
		err := adapter.handleRequest()
		if err != nil {
			if err == io.EOF {
				logrus.Infof("[DebugAdapter] no more data to read from %s", conn.RemoteAddr())
				break
			}
			logrus.Warnf("[DebugAdapter] server error: %v", err)
			break
		}
	}

	logrus.Infof("[DebugAdapter] closing connection from %s", conn.RemoteAddr())
	debugSession.UnregisterEventListener(adapter)
	adapter.closeSendQueue()
	adapter.sendWg.Wait()
	conn.Close()
}

// DebugAdapter 单个客户端连接的DAP适配器
// 把DAP请求翻译成调试会话的操作，把会话事件翻译成DAP事件
type DebugAdapter struct {
	conn net.Conn
	// rw is used to read requests and write events/responses
	rw *bufio.ReadWriter

	session *session.DebugSession

	// sendQueue serializes messages from the request handlers and the
	// session event callbacks into a single writer goroutine.
	sendQueue chan dap.Message
	sendWg    sync.WaitGroup
	sendMu    sync.Mutex
	closed    bool

	mu sync.Mutex
	// threadByExec/execByThread 暂停执行和DAP线程id的双向映射
	threadByExec map[string]int
	execByThread map[int]string
	nextThreadID int
	// pendingEvaluations 等待求值事件回复的DAP请求，key是correlationID
	pendingEvaluations map[string]*dap.EvaluateRequest
	// pendingCompletions 等待补全事件回复的DAP请求，按到达顺序回复
	pendingCompletions []*dap.CompletionsRequest
}

func (a *DebugAdapter) handleRequest() error {
	request, err := dap.ReadProtocolMessage(a.rw.Reader)
	if err != nil {
		return err
	}
	a.dispatchRequest(request)
	return nil
}

func (a *DebugAdapter) dispatchRequest(request dap.Message) {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		a.onInitializeRequest(request)
	case *dap.LaunchRequest:
		a.onLaunchRequest(request)
	case *dap.SetBreakpointsRequest:
		a.onSetBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		a.onConfigurationDoneRequest(request)
	case *dap.ContinueRequest:
		a.onContinueRequest(request)
	case *dap.NextRequest:
		a.onNextRequest(request)
	case *dap.ThreadsRequest:
		a.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		a.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		a.onScopesRequest(request)
	case *dap.VariablesRequest:
		a.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		a.onEvaluateRequest(request)
	case *dap.CompletionsRequest:
		a.onCompletionsRequest(request)
	case *dap.DisconnectRequest:
		a.onDisconnectRequest(request)
	default:
		if baseReq, ok := request.(*dap.Request); ok {
			a.send(newErrorResponse(baseReq.Seq, baseReq.Command, fmt.Sprintf("%s is not yet supported", baseReq.Command)))
		}
		logrus.Warnf("[DebugAdapter] unable to process %#v", request)
	}
}

// send 把消息排入发送队列，连接关闭后丢弃
func (a *DebugAdapter) send(message dap.Message) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()
	if a.closed {
		return
	}
	a.sendQueue <- message
}

func (a *DebugAdapter) closeSendQueue() {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.sendQueue)
	}
}

func (a *DebugAdapter) sendFromQueue() {
	defer a.sendWg.Done()
	for message := range a.sendQueue {
		if err := dap.WriteProtocolMessage(a.rw.Writer, message); err != nil {
			logrus.Warnf("[DebugAdapter] write message fail, err = %v", err)
			continue
		}
		a.rw.Flush()
	}
}

// threadID 返回某个执行的线程id，第一次见到时分配
func (a *DebugAdapter) threadID(executionID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.threadByExec[executionID]; ok {
		return id
	}
	a.nextThreadID++
	a.threadByExec[executionID] = a.nextThreadID
	a.execByThread[a.nextThreadID] = executionID
	return a.nextThreadID
}

func (a *DebugAdapter) executionID(threadID int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	executionID, ok := a.execByThread[threadID]
	return executionID, ok
}

func (a *DebugAdapter) releaseThread(executionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.threadByExec[executionID]; ok {
		delete(a.threadByExec, executionID)
		delete(a.execByThread, id)
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Format = message
	er.Body.Error.Id = 12345
	return er
}
