package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv はテスト中に設定へ影響する環境変数を空にする
func clearEnv(t *testing.T) {
	t.Helper()
	for key := range envMappings {
		t.Setenv(strings.ToUpper(key), "")
	}
	t.Setenv(ConfigPathEnvVar, "")
}

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}
	if cfg.Storage.UploadDir != "Uploads" {
		t.Errorf("UploadDir = %s, want Uploads", cfg.Storage.UploadDir)
	}
	if cfg.Storage.AssetPrefix != "/Uploads" {
		t.Errorf("AssetPrefix = %s, want /Uploads", cfg.Storage.AssetPrefix)
	}
	if cfg.Storage.SettingsFile != "config.json" {
		t.Errorf("SettingsFile = %s, want config.json", cfg.Storage.SettingsFile)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{"正常な設定", func(c *Config) {}, false},
		{"無効なポート番号", func(c *Config) { c.Server.Port = 99999 }, true},
		{"ポート0", func(c *Config) { c.Server.Port = 0 }, true},
		{"保存先なし", func(c *Config) { c.Storage.UploadDir = "" }, true},
		{"スラッシュなしの配信パス", func(c *Config) { c.Storage.AssetPrefix = "Uploads" }, true},
		{"ルートの配信パス", func(c *Config) { c.Storage.AssetPrefix = "/" }, true},
		{"エンドポイントと重複する配信パス", func(c *Config) { c.Storage.AssetPrefix = "/get-config" }, true},
		{"エンドポイント配下の配信パス", func(c *Config) { c.Storage.AssetPrefix = "/ws/images" }, true},
		{"階層のある配信パス", func(c *Config) { c.Storage.AssetPrefix = "/media/images" }, false},
		{"設定ファイルなし", func(c *Config) { c.Storage.SettingsFile = "" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	if actual := cfg.ServerAddress(); actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("UPLOAD_DIR", "/data/images")
	t.Setenv("READ_TIMEOUT", "15s")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.UploadDir != "/data/images" {
		t.Errorf("環境変数の保存先が反映されていません: got %s", cfg.Storage.UploadDir)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
}

// TestConfigFile は設定ファイルと環境変数の優先順位をテストする
func TestConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "kanshi.yaml")
	content := "server:\n  port: 7000\n  host: 127.0.0.1\nstorage:\n  asset_prefix: /images\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7001")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Errorf("環境変数がファイルより優先されていません: got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Storage.AssetPrefix != "/images" {
		t.Errorf("AssetPrefix = %s, want /images", cfg.Storage.AssetPrefix)
	}
	if cfg.Storage.UploadDir != "Uploads" {
		t.Errorf("ファイルにない項目はデフォルト値のはず: got %s", cfg.Storage.UploadDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestConfigFile_Missing(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("存在しない設定ファイルでエラーが期待されました")
	}
}

func TestInvalidPortFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")
	if _, err := LoadFile(""); err == nil {
		t.Error("無効なポートでエラーが期待されました")
	}
}

// TestReservedAssetPrefixFromEnv はエンドポイントと重複する配信パスを拒否することをテストする
func TestReservedAssetPrefixFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASSET_PREFIX", "/metrics")
	if _, err := LoadFile(""); err == nil {
		t.Error("重複する配信パスでエラーが期待されました")
	}
}
