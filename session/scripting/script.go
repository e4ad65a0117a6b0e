package scripting

import (
	"fmt"
	"strings"

	"github.com/fansqz/go-debug-session/constants"
	e "github.com/fansqz/go-debug-session/error"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Script 脚本源码，执行模型中脚本活动的内容
type Script struct {
	Language constants.LanguageType `json:"language"`
	Source   string                 `json:"source"`
}

func NewScript(language constants.LanguageType, source string) *Script {
	return &Script{Language: language, Source: source}
}

// Executable 编译后的可执行脚本
// 由CreateScriptFromSource编译产生，可被任意引擎多次执行
type Executable struct {
	Script
	proto *lua.FunctionProto
}

// CreateScriptFromSource 将脚本源码编译成可执行形式
// 表达式会被包装成return语句，这样"1+1"这样的输入也能产生求值结果
func CreateScriptFromSource(language constants.LanguageType, source string) (*Executable, error) {
	if language != constants.LanguageLua {
		return nil, e.ErrLanguageNotSupported
	}
	proto, err := compileChunk("return "+source, "eval")
	if err != nil {
		// 不是单个表达式，按语句块编译
		proto, err = compileChunk(source, "eval")
		if err != nil {
			return nil, fmt.Errorf("compile script fail: %w", err)
		}
	}
	return &Executable{
		Script: Script{Language: language, Source: source},
		proto:  proto,
	}, nil
}

func compileChunk(source string, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, err
	}
	return lua.Compile(chunk, name)
}
