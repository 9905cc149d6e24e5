package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kanshi/internal/asset"
	"kanshi/internal/logging"
	"kanshi/internal/metrics"
	"kanshi/internal/notify"
	"kanshi/internal/settings"
)

// 画像を受け取るマルチパートのフィールド名
const imageField = "image"

// KanshiHandler はHTTPエンドポイントの実装
type KanshiHandler struct {
	assets   *asset.Store
	settings *settings.Store
	hub      *notify.Hub
	metrics  *metrics.Metrics
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status      string    `json:"status"`
	Subscribers int       `json:"subscribers"`
	Timestamp   time.Time `json:"timestamp"`
}

// Root は稼働確認用のメッセージを返す
func (h *KanshiHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "✅ kanshi サーバーは稼働中です")
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *KanshiHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Subscribers: h.hub.ClientCount(),
		Timestamp:   time.Now(),
	})
}

// Upload はカメラから送信された画像を保存し、接続中のビューアに通知する
func (h *KanshiHandler) Upload(c *gin.Context) {
	header, err := c.FormFile(imageField)
	if err != nil {
		h.metrics.ObserveUpload("bad_request", 0)
		c.String(http.StatusBadRequest, "画像が送信されていません")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.metrics.ObserveUpload("error", 0)
		logging.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("アップロードされたファイルを開けません")
		c.String(http.StatusInternalServerError, "画像の保存中にサーバーエラーが発生しました")
		return
	}
	defer file.Close()

	saved, err := h.assets.Save(c.Request.Context(), file)
	if err != nil {
		h.metrics.ObserveUpload("error", 0)
		logging.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("画像の保存に失敗しました")
		c.String(http.StatusInternalServerError, "画像の保存中にサーバーエラーが発生しました")
		return
	}
	h.metrics.ObserveUpload("ok", saved.Size)

	logging.Info().
		Str("url", saved.Locator).
		Int64("size", saved.Size).
		Msg("画像を受信して保存しました")

	// 保存が完了してから通知し、その後にレスポンスを返す
	h.hub.BroadcastNewImage(saved.Locator, time.Now())

	c.Header("Location", saved.Locator)
	c.String(http.StatusOK, "画像を受信して保存しました")
}

// SetConfig はリクエストに含まれるフィールドだけデバイス設定を更新する
func (h *KanshiHandler) SetConfig(c *gin.Context) {
	patch, err := settings.DecodePatch(c.Request.Body)
	if err == nil {
		_, err = h.settings.Update(c.Request.Context(), patch)
	}

	var verr *settings.ValidationError
	switch {
	case err == nil:
		h.metrics.ObserveSettingsUpdate("ok")
		logging.Info().Interface("settings", redact(h.settings.Read())).Msg("設定を更新しました")
		c.String(http.StatusOK, "設定を更新しました")

	case errors.As(err, &verr):
		h.metrics.ObserveSettingsUpdate("invalid")
		c.String(http.StatusBadRequest, verr.Error())

	default:
		h.metrics.ObserveSettingsUpdate("error")
		logging.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("設定の保存に失敗しました")
		c.String(http.StatusInternalServerError, "設定の保存中にサーバーエラーが発生しました")
	}
}

// GetConfig は現在のデバイス設定を返す
func (h *KanshiHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Read())
}

// redact はログ出力用にパスワードを伏せたレコードを返す
func redact(r settings.Record) settings.Record {
	if r.Password != "" {
		r.Password = "***"
	}
	return r
}
