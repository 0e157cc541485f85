package pdf

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yourusername/pdf-slim/internal/storage"
)

// PathKind はジョブIDから導出されるファイルの種別です。
type PathKind string

const (
	PathKindInput  PathKind = "input"
	PathKindOutput PathKind = "output"
)

// jobIDPattern はジョブIDの構文です。パストラバーサル形の入力は
// ストレージ参照前にここで弾かれます。
var jobIDPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ValidateJobID はジョブIDが32桁の16進トークンであることを検証します。
func ValidateJobID(jobID string) error {
	if !jobIDPattern.MatchString(jobID) {
		return newError("INVALID_JOB_ID", "ジョブIDの形式が正しくありません。", nil)
	}
	return nil
}

// ResolveJobPath はジョブIDのみからファイルパスを導出します。
// ユーザー入力はパスの構成要素に一切含まれません。
func ResolveJobPath(layout storage.Layout, jobID string, kind PathKind) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	switch kind {
	case PathKindInput:
		return filepath.Join(layout.UploadsRoot(), jobID+".pdf"), nil
	case PathKindOutput:
		return filepath.Join(layout.OutputsRoot(), jobID+"_web.pdf"), nil
	default:
		return "", fmt.Errorf("unknown path kind: %s", kind)
	}
}

// VerifyWithin は path が root の内側に収まっていることを検証します。
// メタデータに保存されたパスはここを通してから使用します
// （レコードが直接改ざんされた場合への防御）。
func VerifyWithin(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return newError("UNSAFE_PATH", "パスがストレージルートの外を指しています。", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == "." {
		return newError("UNSAFE_PATH", "パスがストレージルートの外を指しています。", nil)
	}
	return nil
}
