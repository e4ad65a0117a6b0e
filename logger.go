package main

import (
	"os"

	"github.com/fansqz/go-debug-session/config"
	"github.com/sirupsen/logrus"
)

var logFile *os.File

// SetupLogger 初始化日志
// 配置了日志路径就写文件，否则输出到标准输出
func SetupLogger(cfg config.LogConfig) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err == nil {
			level = parsed
		}
	}
	logrus.SetLevel(level)

	if cfg.Path == "" {
		return
	}
	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logrus.Warnf("open log file %s fail, err = %v", cfg.Path, err)
		return
	}
	logFile = file
	logrus.SetOutput(logFile)
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
	}
}
