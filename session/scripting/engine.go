package scripting

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fansqz/go-debug-session/constants"
	e "github.com/fansqz/go-debug-session/error"
	lua "github.com/yuin/gopher-lua"
)

// EvaluationError 脚本执行失败的包装错误，Cause是引擎抛出的原始错误
type EvaluationError struct {
	Cause error
}

func (err *EvaluationError) Error() string {
	return fmt.Sprintf("script evaluation failed: %v", err.Cause)
}

func (err *EvaluationError) Unwrap() error {
	return err.Cause
}

// Cause 从EvaluationError中取出原始错误，其他错误原样返回
func Cause(err error) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr.Cause
	}
	return err
}

// Engine 某个语言的脚本执行引擎
// lua的LState不是并发安全的，所有执行通过内部锁串行化。
// 引擎是有状态的：全局求值路径会复用同一个引擎，脚本创建的变量在多次求值之间保留。
type Engine struct {
	mu       sync.Mutex
	language constants.LanguageType
	state    *lua.LState
}

// NewEngine 创建某个语言的执行引擎，目前只支持lua
func NewEngine(language constants.LanguageType) (*Engine, error) {
	if language != constants.LanguageLua {
		return nil, e.ErrLanguageNotSupported
	}
	return &Engine{
		language: language,
		state:    lua.NewState(),
	}, nil
}

func (en *Engine) Language() constants.LanguageType {
	return en.language
}

// Execute 使用给定绑定执行脚本，返回脚本的求值结果
// scope是暂停位置的执行变量，shared是会话共享绑定，scope会覆盖同名的shared
// 执行失败返回EvaluationError
func (en *Engine) Execute(executable *Executable, scope map[string]any, shared map[string]any) (any, error) {
	if executable == nil {
		return nil, &EvaluationError{Cause: errors.New("executable script is nil")}
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	for name, value := range shared {
		en.state.SetGlobal(name, toLuaValue(en.state, value))
	}
	for name, value := range scope {
		en.state.SetGlobal(name, toLuaValue(en.state, value))
	}

	base := en.state.GetTop()
	fn := en.state.NewFunctionFromProto(executable.proto)
	en.state.Push(fn)
	if err := en.state.PCall(0, lua.MultRet, nil); err != nil {
		en.state.SetTop(base)
		return nil, &EvaluationError{Cause: err}
	}

	var result any
	if en.state.GetTop() > base {
		result = ToGoValue(en.state.Get(base + 1))
		en.state.SetTop(base)
	}
	return result, nil
}

// Global 读取引擎中某个全局变量的当前值
func (en *Engine) Global(name string) (any, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()
	lv := en.state.GetGlobal(name)
	if lv == lua.LNil {
		return nil, false
	}
	return ToGoValue(lv), true
}

// Close 释放引擎持有的资源
func (en *Engine) Close() {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.state.Close()
}
