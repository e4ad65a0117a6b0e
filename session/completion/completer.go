package completion

import (
	"reflect"
	"sort"
	"strings"
)

// Hint 一条补全提示
type Hint struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

const (
	KindVariable = "variable"
	KindField    = "field"
	KindMethod   = "method"
	KindKey      = "property"
)

// CodeCompleter 基于绑定的代码补全器
// 对"foo.ba"这样的输入，先沿着绑定解析foo，再补全它的成员
type CodeCompleter struct {
	bindings map[string]any
}

// Builder 构建补全器，多次Bindings调用会合并绑定
type Builder struct {
	bindings map[string]any
}

func NewBuilder() *Builder {
	return &Builder{bindings: make(map[string]any)}
}

func (b *Builder) Bindings(bindings map[string]any) *Builder {
	for name, value := range bindings {
		b.bindings[name] = value
	}
	return b
}

func (b *Builder) BuildCompleter() *CodeCompleter {
	return &CodeCompleter{bindings: b.bindings}
}

// Complete 返回以prefix开头的补全提示，按文本排序
func (c *CodeCompleter) Complete(prefix string) []*Hint {
	parts := strings.Split(prefix, ".")
	if len(parts) == 1 {
		return c.completeRoot(parts[0])
	}

	// 解析除最后一段之外的路径
	value, ok := c.bindings[parts[0]]
	if !ok {
		return []*Hint{}
	}
	for _, part := range parts[1 : len(parts)-1] {
		value, ok = resolveMember(value, part)
		if !ok {
			return []*Hint{}
		}
	}
	return completeMembers(value, parts[len(parts)-1])
}

func (c *CodeCompleter) completeRoot(prefix string) []*Hint {
	hints := make([]*Hint, 0)
	for name := range c.bindings {
		if strings.HasPrefix(name, prefix) {
			hints = append(hints, &Hint{Text: name, Kind: KindVariable})
		}
	}
	sortHints(hints)
	return hints
}

// resolveMember 解析value的某个成员，支持map的key和结构体的导出字段
func resolveMember(value any, name string) (any, bool) {
	if m, ok := value.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		field := rv.FieldByName(name)
		if field.IsValid() && field.CanInterface() {
			return field.Interface(), true
		}
	}
	return nil, false
}

// completeMembers 补全value中以prefix开头的成员
func completeMembers(value any, prefix string) []*Hint {
	hints := make([]*Hint, 0)
	if m, ok := value.(map[string]any); ok {
		for key := range m {
			if strings.HasPrefix(key, prefix) {
				hints = append(hints, &Hint{Text: key, Kind: KindKey})
			}
		}
		sortHints(hints)
		return hints
	}

	rv := reflect.ValueOf(value)
	rt := reflect.TypeOf(value)
	if rt == nil {
		return hints
	}
	// 方法集包含指针接收者
	for i := 0; i < rt.NumMethod(); i++ {
		name := rt.Method(i).Name
		if strings.HasPrefix(name, prefix) {
			hints = append(hints, &Hint{Text: name + "()", Kind: KindMethod})
		}
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			sortHints(hints)
			return hints
		}
		rv = rv.Elem()
		rt = rt.Elem()
	}
	if rv.Kind() == reflect.Struct {
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			if strings.HasPrefix(field.Name, prefix) {
				hints = append(hints, &Hint{Text: field.Name, Kind: KindField})
			}
		}
	}
	sortHints(hints)
	return hints
}

func sortHints(hints []*Hint) {
	sort.Slice(hints, func(i, j int) bool {
		return hints[i].Text < hints[j].Text
	})
}
