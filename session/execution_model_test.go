package session

import (
	"errors"
	"testing"

	"github.com/fansqz/go-debug-session/constants"
	e "github.com/fansqz/go-debug-session/error"
	"github.com/fansqz/go-debug-session/session/scripting"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryExecutionModel(t *testing.T) {
	model := NewInMemoryExecutionModel()
	model.RegisterScriptActivity("invoice", "calculate", scripting.NewScript(constants.LanguageLua, "total = net + tax"))
	model.RegisterActivity("invoice", "approve")

	script, err := model.GetScript("invoice", "calculate")
	assert.Nil(t, err)
	assert.Equal(t, constants.LanguageLua, script.Language)
	assert.Equal(t, "total = net + tax", script.Source)

	_, err = model.GetScript("invoice", "approve")
	assert.True(t, errors.Is(err, e.ErrNotScriptActivity))
	_, err = model.GetScript("invoice", "missing")
	assert.True(t, errors.Is(err, e.ErrActivityNotFound))
}

func TestUpdateScript(t *testing.T) {
	model := NewInMemoryExecutionModel()
	model.RegisterScriptActivity("invoice", "calculate", scripting.NewScript(constants.LanguageLua, "total = 1"))
	model.RegisterActivity("invoice", "approve")

	err := model.UpdateScript("invoice", "calculate", scripting.NewScript(constants.LanguageLua, "total = 2"))
	assert.Nil(t, err)
	script, err := model.GetScript("invoice", "calculate")
	assert.Nil(t, err)
	assert.Equal(t, "total = 2", script.Source)

	err = model.UpdateScript("invoice", "approve", scripting.NewScript(constants.LanguageLua, "x"))
	assert.True(t, errors.Is(err, e.ErrNotScriptActivity))
	err = model.UpdateScript("invoice", "missing", scripting.NewScript(constants.LanguageLua, "x"))
	assert.True(t, errors.Is(err, e.ErrActivityNotFound))
}

func TestSessionScriptAccess(t *testing.T) {
	model := NewInMemoryExecutionModel()
	model.RegisterScriptActivity("invoice", "calculate", scripting.NewScript(constants.LanguageLua, "total = 1"))
	factory := NewFactory(model)
	session := factory.CreateSession(nil)
	defer session.Close()

	script, err := session.GetScript("invoice", "calculate")
	assert.Nil(t, err)
	assert.Equal(t, "total = 1", script.Source)

	err = session.UpdateScript("invoice", "calculate", scripting.NewScript(constants.LanguageLua, "total = 2"))
	assert.Nil(t, err)
	script, err = session.GetScript("invoice", "calculate")
	assert.Nil(t, err)
	assert.Equal(t, "total = 2", script.Source)
}
