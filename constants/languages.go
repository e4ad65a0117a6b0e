package constants

// LanguageType 脚本语言类型
// 调试会话只透传语言标识，真正的执行引擎在scripting包中注册
type LanguageType string

const (
	LanguageLua        LanguageType = "lua"
	LanguageJavaScript LanguageType = "javascript"
	LanguageGroovy     LanguageType = "groovy"
)
