package main

import (
	"context"
	"flag"
	"fmt"
	"net"

	"github.com/fansqz/go-debug-session/config"
	"github.com/fansqz/go-debug-session/constants"
	"github.com/fansqz/go-debug-session/session"
	"github.com/fansqz/go-debug-session/session/scripting"
	"github.com/fansqz/go-debug-session/utils/gosync"
	"github.com/sirupsen/logrus"
)

// 定义版本号
const Version = "1.0.0"

func main() {
	showVersion := flag.Bool("version", false, "Show the version number")
	configPath := flag.String("config", "", "Path to the yaml config file")
	port := flag.Int("port", 0, "TCP port to listen on, overrides the config")
	demo := flag.Bool("demo", false, "Suspend a demo execution at each configured breakpoint")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Version: %s\n", Version)
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Printf("load config fail: %v\n", err)
			return
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Port = *port
	}

	SetupLogger(cfg.Log)
	defer CloseLogger()

	// 所有连接共享一个调试会话，工厂的执行模型带一个示例脚本活动
	model := session.NewInMemoryExecutionModel()
	model.RegisterScriptActivity("demo-process", "calculate",
		scripting.NewScript(constants.LanguageLua, "total = amount + tax"))
	factory := session.NewFactory(model)
	factory.SetDefaultBinding("processEngineName", "default")

	breakPoints := make([]*session.BreakPoint, 0, len(cfg.Breakpoints))
	for _, breakpoint := range cfg.Breakpoints {
		breakPoints = append(breakPoints, session.NewBreakPoint(breakpoint.File, breakpoint.Line))
	}
	debugSession := factory.CreateSession(breakPoints)
	defer debugSession.Close()

	if *demo {
		startDemoExecutions(debugSession)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logrus.Errorf("listen on %d fail, err = %v", cfg.Port, err)
		return
	}
	defer listener.Close()
	logrus.Infof("started listening at: %s", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			logrus.Warnf("connection failed: %v", err)
			continue
		}
		gosync.Go(context.Background(), func(ctx context.Context) { handleConnection(conn, debugSession) })
	}
}

// startDemoExecutions 在每个配置断点上暂停一个演示执行，方便用DAP客户端直接体验
func startDemoExecutions(debugSession *session.DebugSession) {
	for i, breakPoint := range debugSession.GetBreakPoints() {
		breakPoint := breakPoint
		index := i
		gosync.Go(context.Background(), func(ctx context.Context) {
			execCtx := session.MapContext{
				"amount": 100 + index,
				"tax":    19,
			}
			exec := session.NewSuspendedExecution(breakPoint, execCtx)
			debugSession.Suspend(ctx, exec)
		})
	}
}
