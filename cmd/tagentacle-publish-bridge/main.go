// Package main 运行 MCP 发布桥节点
//
// 发布桥把总线 Publish 暴露为 MCP 工具 publish_to_topic，使 Agent 可以通过标准
// MCP 工具调用向任意主题发消息。
//
// 用法：
//
//	tagentacle-publish-bridge --daemon tcp://127.0.0.1:19999 --allow /alerts/ --allow /chat/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	tagentacle "github.com/Tagentacle/go-sdk"
	"github.com/Tagentacle/go-sdk/config"
	"github.com/Tagentacle/go-sdk/internal/protocol/mcp"
	"github.com/Tagentacle/go-sdk/internal/protocol/mcp/publishbridge"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("cmd/publish-bridge")

const defaultNodeID = "mcp_publish_bridge"

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════

type flags struct {
	nodeID      string
	daemon      string
	configFile  string
	allow       []string
	metricsAddr string
	logLevel    string
	logFormat   string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var f flags
	flagSet := pflag.NewFlagSet("tagentacle-publish-bridge", pflag.ContinueOnError)
	flagSet.StringVar(&f.nodeID, "node-id", defaultNodeID, "node id on the bus")
	flagSet.StringVar(&f.daemon, "daemon", "", "daemon address (default from config or "+config.EnvDaemonURL+")")
	flagSet.StringVar(&f.configFile, "config", "", "config file (.json or .toml)")
	flagSet.StringArrayVar(&f.allow, "allow", nil, "allowed topic prefix, repeatable (default: all topics)")
	flagSet.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level spec, e.g. info or core/dispatcher=debug,info")
	flagSet.StringVar(&f.logFormat, "log-format", "", "log format: text or json")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	// 与旧版兼容：位置参数同样视为允许的主题前缀
	allowList := append(f.allow, flagSet.Args()...)
	restricted := flagSet.Changed("allow") || len(flagSet.Args()) > 0

	cfg, err := config.Load(f.configFile)
	if err != nil {
		return err
	}
	setupLogging(cfg, f)
	if f.metricsAddr != "" {
		cfg.Metrics.ListenAddr = f.metricsAddr
	}

	nodeID := cfg.NodeID
	if flagSet.Changed("node-id") || nodeID == "" {
		nodeID = f.nodeID
	}
	opts := []tagentacle.Option{tagentacle.WithConfig(cfg)}
	if f.daemon != "" {
		opts = append(opts, tagentacle.WithDaemonURL(f.daemon))
	}

	node, err := tagentacle.New(nodeID, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = node.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := node.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", node.Config().DaemonURL, err)
	}

	var bridgeOpts []publishbridge.Option
	if restricted {
		bridgeOpts = append(bridgeOpts, publishbridge.WithAllowList(allowList...))
		logger.Info("主题白名单", "prefixes", allowList)
	}
	bridge := publishbridge.New(node, bridgeOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(node.Spin(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(bridge.Serve(gctx, mcp.ServerOptions{}))
	})
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		serveMetrics(gctx, g, node, addr)
	}

	logger.Info("发布桥已启动", "nodeID", nodeID, "daemon", node.Config().DaemonURL)
	err = g.Wait()
	logger.Info("发布桥已退出")
	return err
}

// setupLogging 命令行参数优先于配置文件，两者都未设置时保留环境变量配置
func setupLogging(cfg *config.Config, f flags) {
	level, format := cfg.Log.Level, cfg.Log.Format
	if f.logLevel != "" {
		level = f.logLevel
	}
	if f.logFormat != "" {
		format = f.logFormat
	}
	if f.logLevel == "" && f.logFormat == "" && os.Getenv(log.EnvLogLevel) != "" {
		return
	}
	lc := log.ParseConfig(level, format)
	log.Setup(os.Stderr, lc.DefaultLevel, lc.Format)
}

// serveMetrics 在 g 中运行指标 HTTP 端点，gctx 结束时关闭
func serveMetrics(gctx context.Context, g *errgroup.Group, node *tagentacle.Node, addr string) {
	gatherer := node.Metrics()
	if gatherer == nil {
		logger.Warn("指标已关闭，不启动指标端点", "addr", addr)
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("指标端点已启动", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
