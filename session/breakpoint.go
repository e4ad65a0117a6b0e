package session

import (
	"fmt"

	"github.com/fansqz/go-debug-session/utils"
)

// BreakPoint 断点定义
// 核心只负责存储和返回断点，什么时候命中由宿主的执行引擎判断
type BreakPoint struct {
	ID   string `json:"id"`
	File string `json:"file"`
	Line int    `json:"line"`
}

func NewBreakPoint(file string, line int) *BreakPoint {
	return &BreakPoint{
		ID:   utils.GetUUID(),
		File: file,
		Line: line,
	}
}

func (b *BreakPoint) String() string {
	if b == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%d", b.File, b.Line)
}
