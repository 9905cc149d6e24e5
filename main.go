package main

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"kanshi/internal/config"
	"kanshi/internal/logging"
	"kanshi/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("設定の読み込みに失敗しました")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// サーバーを作成
	srv, err := server.New(cfg, afero.NewOsFs())
	if err != nil {
		logging.Error().Err(err).Msg("サーバーの作成に失敗しました")
		os.Exit(1)
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		logging.Error().Err(err).Msg("サーバーの起動に失敗しました")
		os.Exit(1)
	}
}
