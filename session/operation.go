package session

import (
	"github.com/fansqz/go-debug-session/constants"
	"github.com/fansqz/go-debug-session/session/completion"
	"github.com/fansqz/go-debug-session/session/scripting"
	"github.com/sirupsen/logrus"
)

// DebugOperation 排队在暂停执行上的调试操作
// Execute总是在被暂停的工作协程上运行，可以安全访问执行上下文
type DebugOperation interface {
	Name() string
	Execute(session *DebugSession, exec *SuspendedExecution)
}

// ScriptEvaluationOperation 在暂停位置的作用域内求值一段脚本
type ScriptEvaluationOperation struct {
	Language      constants.LanguageType
	Source        string
	CorrelationID string
}

func (o *ScriptEvaluationOperation) Name() string {
	return "evaluate script"
}

func (o *ScriptEvaluationOperation) Execute(session *DebugSession, exec *SuspendedExecution) {
	logrus.Infof("[ScriptEvaluationOperation] execute on execution: %s, source: %s", exec.ID(), o.Source)
	evaluation := NewDebugScriptEvaluation(o.Language, o.Source, o.CorrelationID)
	result, err := session.evaluateInScope(o.Language, o.Source, exec.Context().Variables())
	if err != nil {
		evaluation.Err = scripting.Cause(err)
		session.fireScriptEvaluationFailed(evaluation)
		return
	}
	evaluation.Result = result
	session.fireScriptEvaluated(evaluation)
}

// CodeCompletionOperation 基于暂停位置的变量做代码补全
type CodeCompletionOperation struct {
	Prefix string
}

func (o *CodeCompletionOperation) Name() string {
	return "code completion"
}

func (o *CodeCompletionOperation) Execute(session *DebugSession, exec *SuspendedExecution) {
	logrus.Infof("[CodeCompletionOperation] execute on execution: %s, prefix: %s", exec.ID(), o.Prefix)
	completer := completion.NewBuilder().
		Bindings(session.GlobalBindings()).
		Bindings(exec.Context().Variables()).
		BuildCompleter()
	session.fireCodeCompletion(completer.Complete(o.Prefix))
}
