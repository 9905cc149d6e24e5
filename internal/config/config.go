package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `koanf:"host"` // リッスンするホスト
	Port int    `koanf:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `koanf:"read_timeout"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `koanf:"write_timeout"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"` // シャットダウン待ち時間
}

// StorageConfig は保存先の設定
type StorageConfig struct {
	UploadDir    string `koanf:"upload_dir"`    // 画像の保存先ディレクトリ
	AssetPrefix  string `koanf:"asset_prefix"`  // 画像を配信するURLパス
	SettingsFile string `koanf:"settings_file"` // デバイス設定のJSONファイル
}

// LoggingConfig はログ出力の設定
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console
}

// ConfigPathEnvVar は設定ファイルのパスを指定する環境変数
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPath は設定ファイルのデフォルトパス（存在しなければ使わない）
const DefaultConfigPath = "kanshi.yaml"

// envMappings は環境変数名と設定キーの対応
var envMappings = map[string]string{
	"server_host":      "server.host",
	"port":             "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"upload_dir":       "storage.upload_dir",
	"asset_prefix":     "storage.asset_prefix",
	"settings_file":    "storage.settings_file",
	"log_level":        "logging.level",
	"log_format":       "logging.format",
}

// reservedPaths は画像配信パスに使えない先頭セグメント
var reservedPaths = map[string]bool{
	"health":     true,
	"upload":     true,
	"set-config": true,
	"get-config": true,
	"ws":         true,
	"metrics":    true,
}

// defaultConfig はデフォルト設定を返す
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // WebSocket用にタイムアウト無効化
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir:    "Uploads",
			AssetPrefix:  "/Uploads",
			SettingsFile: "config.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load は設定を読み込む
// デフォルト値、設定ファイル（任意）、環境変数の順に上書きする
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile は指定された設定ファイルを使って設定を読み込む
// path が空の場合は設定ファイルを使わない
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("デフォルト設定の読み込みに失敗: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("設定の変換に失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// findConfigFile は設定ファイルを探す。見つからなければ空文字を返す
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// envTransformFunc は環境変数名を設定キーに変換する
// 対応しない環境変数と空の値は空文字のキーを返して無視する
func envTransformFunc(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return envMappings[strings.ToLower(key)], value
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Storage.UploadDir == "" {
		return errors.New("画像の保存先ディレクトリが指定されていません")
	}
	if !strings.HasPrefix(c.Storage.AssetPrefix, "/") || c.Storage.AssetPrefix == "/" {
		return fmt.Errorf("無効な画像配信パス: %q", c.Storage.AssetPrefix)
	}
	if first := strings.SplitN(strings.Trim(c.Storage.AssetPrefix, "/"), "/", 2)[0]; reservedPaths[first] {
		return fmt.Errorf("画像配信パス %q は既存のエンドポイントと重複しています", c.Storage.AssetPrefix)
	}
	if c.Storage.SettingsFile == "" {
		return errors.New("設定ファイルのパスが指定されていません")
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
