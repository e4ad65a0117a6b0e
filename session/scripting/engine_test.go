package scripting

import (
	"errors"
	"testing"

	"github.com/fansqz/go-debug-session/constants"
	e "github.com/fansqz/go-debug-session/error"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateExpression(t *testing.T) {
	engine, err := NewEngine(constants.LanguageLua)
	assert.Nil(t, err)
	defer engine.Close()

	executable, err := CreateScriptFromSource(constants.LanguageLua, "1 + 1")
	assert.Nil(t, err)
	result, err := engine.Execute(executable, nil, nil)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), result)
}

func TestEvaluateStatementBlock(t *testing.T) {
	engine, err := NewEngine(constants.LanguageLua)
	assert.Nil(t, err)
	defer engine.Close()

	// 语句块没有return就没有结果，但副作用保留在引擎里
	executable, err := CreateScriptFromSource(constants.LanguageLua, "x = 40 + 2")
	assert.Nil(t, err)
	result, err := engine.Execute(executable, nil, nil)
	assert.Nil(t, err)
	assert.Nil(t, result)

	value, ok := engine.Global("x")
	assert.True(t, ok)
	assert.Equal(t, int64(42), value)
}

func TestScopeShadowsSharedBindings(t *testing.T) {
	engine, err := NewEngine(constants.LanguageLua)
	assert.Nil(t, err)
	defer engine.Close()

	executable, err := CreateScriptFromSource(constants.LanguageLua, "amount")
	assert.Nil(t, err)
	result, err := engine.Execute(executable,
		map[string]any{"amount": 7},
		map[string]any{"amount": 1, "other": "keep"})
	assert.Nil(t, err)
	assert.Equal(t, int64(7), result)
}

func TestEvaluationErrorWrapsCause(t *testing.T) {
	engine, err := NewEngine(constants.LanguageLua)
	assert.Nil(t, err)
	defer engine.Close()

	executable, err := CreateScriptFromSource(constants.LanguageLua, "error('boom')")
	assert.Nil(t, err)
	_, err = engine.Execute(executable, nil, nil)
	assert.NotNil(t, err)

	var evalErr *EvaluationError
	assert.True(t, errors.As(err, &evalErr))
	assert.Equal(t, evalErr.Cause, Cause(err))
}

func TestUnsupportedLanguage(t *testing.T) {
	_, err := NewEngine(constants.LanguageGroovy)
	assert.True(t, errors.Is(err, e.ErrLanguageNotSupported))

	_, err = CreateScriptFromSource(constants.LanguageJavaScript, "1 + 1")
	assert.True(t, errors.Is(err, e.ErrLanguageNotSupported))
}

func TestCompileFailure(t *testing.T) {
	_, err := CreateScriptFromSource(constants.LanguageLua, "if then end")
	assert.NotNil(t, err)
}

func TestValueConversion(t *testing.T) {
	engine, err := NewEngine(constants.LanguageLua)
	assert.Nil(t, err)
	defer engine.Close()

	executable, err := CreateScriptFromSource(constants.LanguageLua, "{1, 2, 3}")
	assert.Nil(t, err)
	result, err := engine.Execute(executable, nil, nil)
	assert.Nil(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, result)

	executable, err = CreateScriptFromSource(constants.LanguageLua, "{name = 'kermit', age = 30}")
	assert.Nil(t, err)
	result, err = engine.Execute(executable, nil, nil)
	assert.Nil(t, err)
	assert.Equal(t, map[string]any{"name": "kermit", "age": int64(30)}, result)

	executable, err = CreateScriptFromSource(constants.LanguageLua, "1.5")
	assert.Nil(t, err)
	result, err = engine.Execute(executable, nil, nil)
	assert.Nil(t, err)
	assert.Equal(t, 1.5, result)
}

func TestBindingConversion(t *testing.T) {
	engine, err := NewEngine(constants.LanguageLua)
	assert.Nil(t, err)
	defer engine.Close()

	executable, err := CreateScriptFromSource(constants.LanguageLua, "order.items[2] .. tostring(order.total)")
	assert.Nil(t, err)
	result, err := engine.Execute(executable, map[string]any{
		"order": map[string]any{
			"items": []any{"first", "second"},
			"total": 99,
		},
	}, nil)
	assert.Nil(t, err)
	assert.Equal(t, "second99", result)
}
