package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"kanshi/internal/asset"
	"kanshi/internal/config"
	"kanshi/internal/logging"
	"kanshi/internal/metrics"
	"kanshi/internal/notify"
	"kanshi/internal/settings"
)

const defaultShutdownTimeout = 5 * time.Second

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	fs         afero.Fs
	registry   *prometheus.Registry
	handler    *KanshiHandler
}

// New は新しいServerインスタンスを作成する
// 画像の保存先ディレクトリの作成とデバイス設定の読み込みもここで行う
func New(cfg *config.Config, fs afero.Fs) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	assets := asset.NewStore(fs, cfg.Storage.UploadDir, cfg.Storage.AssetPrefix)
	if err := assets.EnsureDir(); err != nil {
		return nil, fmt.Errorf("画像保存先の準備に失敗: %w", err)
	}
	logging.Info().Str("dir", assets.Dir()).Msg("画像保存先ディレクトリを確認しました")

	handler := &KanshiHandler{
		assets:   assets,
		settings: settings.Load(fs, cfg.Storage.SettingsFile),
		hub:      notify.NewHub(m),
		metrics:  m,
	}

	engine := gin.New()

	s := &Server{
		config:   cfg,
		engine:   engine,
		fs:       fs,
		registry: registry,
		handler:  handler,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	h := s.handler

	s.engine.Use(gin.Recovery(), requestID(), accessLog(), observeRequests(h.metrics))

	// ルートハンドラ（簡単な確認用）
	s.engine.GET("/", h.Root)
	s.engine.GET("/health", h.HealthCheck)

	// カメラデバイス向けエンドポイント
	s.engine.POST("/upload", h.Upload)
	s.engine.POST("/set-config", h.SetConfig)
	s.engine.GET("/get-config", h.GetConfig)

	// ビューア向けのリアルタイム通知
	s.engine.GET("/ws", gin.WrapF(h.hub.ServeWS))

	// 保存済み画像の配信
	s.engine.StaticFS(h.assets.Prefix(), newAssetFS(s.fs, h.assets.Dir()))

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub は通知Hubを返す
func (s *Server) Hub() *notify.Hub {
	return s.handler.hub
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		logging.Info().Str("addr", s.config.ServerAddress()).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		logging.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	logging.Info().Msg("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// WebSocket接続はShutdownの対象外なので先に切断する
	s.handler.hub.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	logging.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}
