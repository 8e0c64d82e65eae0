package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ariannamethod/body/artifacts"
	"github.com/ariannamethod/body/collab"
	"github.com/ariannamethod/body/config"
	"github.com/ariannamethod/body/gateway"
	"github.com/ariannamethod/body/internal/metrics"
	"github.com/ariannamethod/body/internal/server"
	"github.com/ariannamethod/body/perception"
	"github.com/ariannamethod/body/resonance"
	"github.com/ariannamethod/body/sensors"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是桥接服务的组装根：共鸣日志、工件存储、感知通道、
// 协作分发器与 HTTP 网关在此接线
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager  *server.Manager
	resonanceLog resonance.Log
	dispatcher   *collab.Dispatcher
	orchestrator *perception.Orchestrator
	collector    *metrics.Collector
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Start 组装并启动全部组件（非阻塞）
func (s *Server) Start() error {
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	s.collector = metrics.NewCollector("body", registry, s.logger)

	// 共鸣日志：整个桥接服务的持久化事实来源
	resLog, err := resonance.Open(
		s.cfg.Store.LogBackend,
		s.cfg.Store.SQLitePath,
		resonance.RedisOptions{
			Addr:      s.cfg.Store.Redis.Addr,
			Password:  s.cfg.Store.Redis.Password,
			DB:        s.cfg.Store.Redis.DB,
			KeyPrefix: s.cfg.Store.Redis.KeyPrefix,
		},
		s.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to open resonance log: %w", err)
	}
	s.resonanceLog = resLog

	artifactStore, err := artifacts.NewFileStore(s.cfg.Store.ArtifactDir, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}

	// 感知管线
	runner := sensors.ExecRunner{}
	channels := sensors.NewRegistry(s.cfg.Sensors, runner, s.logger)
	s.orchestrator = perception.NewOrchestrator(channels, artifactStore, resLog, s.cfg.Sensors, s.logger).
		WithMetrics(s.collector)

	// 协作分发器：直接 intent 投递，回落到系统分享面板
	transport := collab.NewIntentTransport(s.cfg.Collab.Apps, runner, s.logger)
	s.dispatcher = collab.NewDispatcher(transport, resLog, s.cfg.Collab, s.logger).
		WithMetrics(s.collector)

	// 重启后从日志恢复 pending 关联，再启动过期扫描
	if err := s.dispatcher.RestorePending(ctx); err != nil {
		return fmt.Errorf("failed to restore pending correlations: %w", err)
	}
	s.dispatcher.StartSweeper(ctx)

	responder := newBridgeResponder(s.orchestrator, s.dispatcher, resLog, artifactStore, s.logger)

	gw := gateway.New(
		responder,
		s.orchestrator,
		s.dispatcher,
		resLog,
		s.collector,
		registry,
		s.cfg.Server,
		s.logger,
	)

	s.httpManager = server.NewManager(gw.Handler(), s.cfg.Server, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("bridge components started",
		zap.String("addr", s.httpManager.Addr()),
		zap.String("log_backend", s.cfg.Store.LogBackend),
		zap.String("artifact_dir", s.cfg.Store.ArtifactDir),
	)
	return nil
}

// WaitForShutdown 阻塞直到收到关闭信号，然后按依赖逆序关停
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown(context.Background())
}

// Shutdown 按依赖逆序关停组件
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpManager != nil {
		_ = s.httpManager.Shutdown(ctx)
	}
	if s.dispatcher != nil {
		s.dispatcher.StopSweeper()
	}
	if s.resonanceLog != nil {
		if err := s.resonanceLog.Close(); err != nil {
			s.logger.Error("failed to close resonance log", zap.Error(err))
		}
	}
}
