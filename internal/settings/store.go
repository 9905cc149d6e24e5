// Package settings はカメラデバイス用の設定（Wi-Fi認証情報、通知先電話番号、稼働時間帯）を管理します。
//
// 設定はプロセス内に一つだけ存在し、JSONファイルに永続化されます。
// 読み込みはロックで保護されたコピーを返し、更新は直列化されます。
// ファイルへの書き込み中はレコードのロックを保持しません。
package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"kanshi/internal/logging"
)

// ErrPersist は設定ファイルへの書き込みに失敗したことを表す
var ErrPersist = errors.New("settings persistence failure")

// Store は設定レコードとその永続化先を保持する
type Store struct {
	fs   afero.Fs
	path string

	mu     sync.RWMutex // record を保護する
	record Record

	writeMu sync.Mutex // Update を直列化する
}

// Load は設定ファイルを読み込んでStoreを作成する
// ファイルが存在しない、または内容が不正な場合はデフォルト値を使い、ファイルに書き戻す
func Load(fs afero.Fs, path string) *Store {
	s := &Store{fs: fs, path: path}

	record, complete, err := s.readFile()
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("設定の読み込みに失敗しました。デフォルト値を使用します")
		record = Defaults()
		complete = false
	}
	s.record = record

	if !complete {
		if err := s.persist(record); err != nil {
			logging.Error().Err(err).Str("path", path).Msg("設定の保存に失敗しました")
		} else {
			logging.Info().Str("path", path).Msg("設定を保存しました")
		}
	}

	logging.Info().
		Str("ssid", record.SSID).
		Str("phone_number", record.PhoneNumber).
		Int("start_hour", record.StartHour).
		Int("end_hour", record.EndHour).
		Msg("設定を読み込みました")

	return s
}

// readFile はファイルの内容をデフォルト値に重ねて返す
// complete は全フィールドがファイルに含まれていたかどうか
func (s *Store) readFile() (Record, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return Record{}, false, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, false, fmt.Errorf("JSONの解析に失敗: %w", err)
	}
	if raw == nil {
		return Record{}, false, errors.New("設定がオブジェクトではありません")
	}

	patch, err := patchFromRaw(raw)
	if err != nil {
		return Record{}, false, err
	}

	record := Defaults().Apply(patch)
	if err := record.Validate(); err != nil {
		return Record{}, false, err
	}

	complete := patch.SSID != nil && patch.Password != nil && patch.PhoneNumber != nil &&
		patch.StartHour != nil && patch.EndHour != nil
	return record, complete, nil
}

// Path は設定ファイルのパスを返す
func (s *Store) Path() string {
	return s.path
}

// Read は現在の設定のコピーを返す
func (s *Store) Read() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Update は指定されたフィールドを検証して反映し、ファイルに保存する
// 一つでも不正なフィールドがあれば何も変更せず*ValidationErrorを返す。
// 保存に失敗した場合はErrPersistを返すが、メモリ上の変更は残る
func (s *Store) Update(ctx context.Context, p Patch) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := p.Validate(); err != nil {
		return Record{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	updated := s.record.Apply(p)
	s.record = updated
	s.mu.Unlock()

	return updated, s.persist(updated)
}

// persist はレコード全体を一時ファイルに書いてから置き換える
func (s *Store) persist(r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

