// Package asset はアップロードされた画像ファイルの保存を担当します。
//
// 保存されたファイルは capture_<エポックミリ秒>.jpg という名前になり、
// <公開プレフィックス>/<ファイル名> のロケーターで取得できます。
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ErrStorage はファイルの書き込みに失敗したことを表す
var ErrStorage = errors.New("asset storage failure")

// 同名ファイルが存在した場合の再試行回数
const maxNameAttempts = 16

// Asset は保存済みの画像ファイル
type Asset struct {
	Name      string    // ファイル名 (capture_<ms>.jpg)
	Locator   string    // 取得用の相対URL
	Size      int64     // 書き込んだバイト数
	CreatedAt time.Time // 名前に埋め込まれた作成時刻
}

// Store は画像ファイルをディレクトリに保存する
type Store struct {
	fs     afero.Fs
	dir    string
	prefix string
	now    func() time.Time

	mu     sync.Mutex
	lastMS int64 // 最後に払い出したミリ秒
}

// NewStore は新しいStoreを作成する
// prefix は公開URLのパス (例: /Uploads)
func NewStore(fs afero.Fs, dir, prefix string) *Store {
	return &Store{
		fs:     fs,
		dir:    dir,
		prefix: "/" + strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Dir は保存先ディレクトリを返す
func (s *Store) Dir() string {
	return s.dir
}

// Prefix はロケーターの先頭パスを返す
func (s *Store) Prefix() string {
	return s.prefix
}

// EnsureDir は保存先ディレクトリを作成する（既に存在する場合は何もしない）
func (s *Store) EnsureDir() error {
	if info, err := s.fs.Stat(s.dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s はディレクトリではありません", ErrStorage, s.dir)
		}
		return nil
	}
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: ディレクトリの作成に失敗: %v", ErrStorage, err)
	}
	return nil
}

// Save は画像データを新しいファイルに書き込み、そのAssetを返す
func (s *Store) Save(ctx context.Context, r io.Reader) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}

	f, ms, err := s.create()
	if err != nil {
		return Asset{}, err
	}

	name := FileName(ms)
	fullPath := filepath.Join(s.dir, name)

	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// 書きかけのファイルは残さない
		_ = s.fs.Remove(fullPath)
		return Asset{}, fmt.Errorf("%w: %s の書き込みに失敗: %v", ErrStorage, name, err)
	}

	return Asset{
		Name:      name,
		Locator:   path.Join(s.prefix, name),
		Size:      size,
		CreatedAt: time.UnixMilli(ms),
	}, nil
}

// create は未使用の名前でファイルを排他的に作成する
func (s *Store) create() (afero.File, int64, error) {
	var lastErr error
	for i := 0; i < maxNameAttempts; i++ {
		ms := s.nextMillis()
		fullPath := filepath.Join(s.dir, FileName(ms))

		f, err := s.fs.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, ms, nil
		}
		if !os.IsExist(err) {
			return nil, 0, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("%w: 空いているファイル名が見つかりません: %v", ErrStorage, lastErr)
}

// nextMillis は単調増加するミリ秒タイムスタンプを返す
// 同じミリ秒内の呼び出しは前回値+1になる
func (s *Store) nextMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.lastMS {
		ms = s.lastMS + 1
	}
	s.lastMS = ms
	return ms
}

// FileName はタイムスタンプから画像ファイル名を生成する
func FileName(ms int64) string {
	return fmt.Sprintf("capture_%d.jpg", ms)
}
