package utils

import (
	"runtime"
	"strings"
)

// GetGoroutineLabel 获取当前协程的标识，用于记录暂停执行是停在哪个协程上
// 格式 "goroutine-<id>"
func GetGoroutineLabel() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) >= 2 {
		return "goroutine-" + fields[1]
	}
	return "goroutine-unknown"
}
