// Package server は、HTTPサーバーとWebSocket通信を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 画像アップロードの受け付け、デバイス設定の読み書き、
// 保存済み画像の配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - アップロードされた画像の保存と new_image イベントの配信
//   - デバイス設定の取得・部分更新
//   - 保存済み画像の静的配信
//   - Prometheusメトリクスの公開
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - WebSocketはgorilla/websocketを使用（notifyパッケージ）
//   - グレースフルシャットダウンに対応
//   - 複数クライアントの同時接続をサポート
package server
