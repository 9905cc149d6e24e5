package server

import (
	"net/http"
	"os"

	"github.com/spf13/afero"
)

// assetFS は保存済み画像を配信するファイルシステム
// ディレクトリの一覧は返さない
type assetFS struct {
	fs http.FileSystem
}

func newAssetFS(fs afero.Fs, dir string) http.FileSystem {
	return assetFS{fs: afero.NewHttpFs(fs).Dir(dir)}
}

// Open はファイルを開く。ディレクトリの場合は存在しないものとして扱う
func (a assetFS) Open(name string) (http.File, error) {
	f, err := a.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
