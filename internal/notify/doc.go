// Package notify は新しい画像の到着をビューアクライアントへリアルタイムに通知します。
//
// 責務:
//   - WebSocket接続の受け入れと購読者の登録・解除
//   - 接続中の全購読者への new_image イベントの配信
//
// 仕様:
//   - 配信はベストエフォート（再送・バックログなし）
//   - 送信バッファが溢れた購読者は切断し、他の購読者への配信を妨げない
//   - 接続後に発生したイベントのみを受信する
package notify
