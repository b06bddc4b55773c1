// =============================================================================
// Mental Wellness Agent 主入口
// =============================================================================
// 命令行与 HTTP 服务入口，包含单次运行、交互对话、图导出与健康检查
//
// 使用方法:
//
//	wellness run "I'm stressed about work"       # 单次运行
//	wellness run --offline --json "..."           # 离线模型，输出 JSON
//	wellness chat                                 # 交互式对话
//	wellness serve --config config.yaml           # 启动 HTTP 服务
//	wellness graph --format mermaid               # 导出图定义
//	wellness health --addr http://localhost:8080  # 健康检查
//	wellness version                              # 显示版本信息
// =============================================================================

// @title Mental Wellness Agent API
// @version 1.0.0
// @description Non-clinical wellness support built on a concurrent workflow engine.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NisargKadam/mental-wellness-agent/api"
	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/wellness"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runOnce(ctx, os.Args[2:], os.Stdout)
	case "chat":
		err = runChat(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "graph":
		err = runGraph(os.Args[2:], os.Stdout)
	case "health":
		err = runHealthCheck(os.Args[2:])
	case "version":
		printVersion(os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// ⚙️ 公共参数
// =============================================================================

// commonFlags 各子命令共享的参数
type commonFlags struct {
	configPath string
	envFile    string
	offline    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to config file (YAML)")
	fs.StringVar(&c.envFile, "env-file", "", "Path to a .env file")
	fs.BoolVar(&c.offline, "offline", false, "Use the offline keyword model instead of an LLM")
}

// load 加载并校验配置
func (c *commonFlags) load() (*config.Config, error) {
	loader := config.NewLoader()
	if c.configPath != "" {
		loader = loader.WithConfigPath(c.configPath)
	}
	if c.envFile != "" {
		loader = loader.WithEnvFile(c.envFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.offline {
		cfg.LLM.Provider = "offline"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func runOnce(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	asJSON := fs.Bool("json", false, "Print the full response as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if input == "" {
		return fmt.Errorf("usage: wellness run [options] <message>")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, appOptions{offline: common.offline})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	resp, err := a.svc.Respond(ctx, input)
	if err != nil {
		return err
	}
	return printResponse(out, resp, *asJSON)
}

func printResponse(out io.Writer, resp *wellness.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewRespondResponse(resp, false))
	}
	_, err := fmt.Fprintln(out, wellness.Format(resp.FinalOutput))
	return err
}

// =============================================================================
// 💬 chat 命令
// =============================================================================

func runChat(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, appOptions{offline: common.offline})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	return chatLoop(ctx, a.svc, in, out)
}

// chatLoop 逐行读取输入并打印回复，输入 exit 或 quit 结束
func chatLoop(ctx context.Context, svc *wellness.Service, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Mental Wellness Agent. Type 'exit' to quit.")
	fmt.Fprintln(out, "This is not medical advice. In a crisis, contact local emergency services.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Take care.")
			return nil
		}

		resp, err := svc.Respond(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if err := printResponse(out, resp, false); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// =============================================================================
// 🗺️ graph 命令
// =============================================================================

func runGraph(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	format := fs.String("format", "mermaid", "Output format: json, yaml or mermaid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := wellness.BuildGraph(wellness.NewOffline())
	if err != nil {
		return err
	}
	def := g.Definition()

	var text string
	switch *format {
	case "json":
		text, err = def.ToJSON()
	case "yaml":
		text, err = def.ToYAML()
	case "mermaid":
		text = def.ToMermaid()
	default:
		return fmt.Errorf("unsupported format %q (want json, yaml or mermaid)", *format)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return err
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Println("OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "Mental Wellness Agent %s\n", Version)
	fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `Mental Wellness Agent - non-clinical wellness support

Usage:
  wellness <command> [options]

Commands:
  run       Answer a single message and exit
  chat      Start an interactive session
  serve     Start the HTTP API server
  graph     Print the workflow graph definition
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'run', 'chat' and 'serve':
  --config <path>    Path to configuration file (YAML)
  --env-file <path>  Path to a .env file
  --offline          Use the offline keyword model

Options for 'run':
  --json             Print the full response as JSON

Options for 'graph':
  --format <fmt>     json, yaml or mermaid (default mermaid)

Examples:
  wellness run --offline "I can't focus on my studies"
  wellness chat --config /etc/wellness/config.yaml
  wellness serve
  wellness graph --format yaml
  wellness health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
