// Package config はプロセスの設定（ポート、保存先、ログ）を読み込みます。
//
// カメラデバイス向けの設定は settings パッケージが扱います。
package config
