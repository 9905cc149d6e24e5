// Package main はkanshiサーバーコマンドの実装です
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"kanshi/internal/config"
	"kanshi/internal/logging"
	"kanshi/internal/server"
)

type options struct {
	host       string
	port       int
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "kanshi サーバー",
		Long:          "カメラから送信された画像を保存し、閲覧者へ通知し、デバイス設定を配信します。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "サーバーのポート (デフォルト: 8080)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "設定ファイルのパス")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	// 設定を読み込む
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	// コマンドラインオプションで設定を上書き
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	srv, err := server.New(cfg, afero.NewOsFs())
	if err != nil {
		return fmt.Errorf("サーバーの作成に失敗しました: %w", err)
	}

	logging.Info().Str("address", cfg.ServerAddress()).Msg("kanshi サーバーを起動します")
	return srv.Start(cmd.Context())
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
