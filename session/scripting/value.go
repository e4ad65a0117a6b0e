package scripting

import (
	lua "github.com/yuin/gopher-lua"
)

// ToGoValue 将lua值转换成Go值
// table会根据key的形态转换成slice或者map，循环引用直接截断
func ToGoValue(lv lua.LValue) any {
	return toGoValueWithVisited(lv, make(map[*lua.LTable]bool))
}

func toGoValueWithVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	if lv == nil {
		return nil
	}
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGoWithVisited(v, visited)
	case *lua.LNilType:
		return nil
	case *lua.LFunction:
		return nil
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGoWithVisited(t *lua.LTable, visited map[*lua.LTable]bool) any {
	// 连续整数key从1开始的table转换成slice
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})
	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = toGoValueWithVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGoValueWithVisited(v, visited)
	})
	return m
}

// toLuaValue 将Go值转换成lua值，宿主服务可以用lua.LGFunction暴露成函数绑定
func toLuaValue(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		table := L.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, toLuaValue(L, item))
		}
		return table
	case map[string]any:
		table := L.NewTable()
		for key, item := range v {
			table.RawSetString(key, toLuaValue(L, item))
		}
		return table
	case func(*lua.LState) int:
		return L.NewFunction(v)
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}
