// Package logging はzerologベースのアプリケーション共通ロガーを提供します。
//
// 使い方:
//
//	logging.Init(logging.Config{Level: "info", Format: "console"})
//	logging.Info().Str("url", locator).Msg("画像を保存しました")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config はロガーの設定
type Config struct {
	Level  string    // trace, debug, info, warn, error
	Format string    // json または console
	Output io.Writer // 出力先 (デフォルト: os.Stderr)
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(Config{})
}

// Init はグローバルロガーを設定する
// 複数回呼び出しても良い（後の呼び出しで再設定される）
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger はロガーを構築する（ロック済み前提）
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

// parseLevel は文字列のレベルをzerolog.Levelに変換する
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger は現在のグローバルロガーのコピーを返す
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug はデバッグレベルのイベントを開始する
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info は情報レベルのイベントを開始する
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn は警告レベルのイベントを開始する
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error はエラーレベルのイベントを開始する
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}
