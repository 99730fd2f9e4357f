package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// scryptのパラメータ。既存のパスワードレコードと互換性を保つため変更しないこと。
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
)

// recordSeparator はパスワードレコードのハッシュとソルトの区切り文字。
const recordSeparator = "."

// HashPassword は平文パスワードからパスワードレコード "hashHex.saltHex" を生成する。
// ソルトは16バイトの乱数を16進文字列にしたもので、KDFにはその文字列のバイト列を渡す。
func HashPassword(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	key, err := deriveKey(plain, saltHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key) + recordSeparator + saltHex, nil
}

// VerifyPassword は入力パスワードが保存済みレコードと一致するかを定数時間で比較する。
// 形式不正のレコードはpanicせずfalseを返す。
func VerifyPassword(supplied, stored string) bool {
	hashHex, saltHex, ok := strings.Cut(stored, recordSeparator)
	if !ok || hashHex == "" || saltHex == "" {
		return false
	}

	expected, err := hex.DecodeString(hashHex)
	if err != nil || len(expected) != scryptKeyLen {
		return false
	}

	derived, err := deriveKey(supplied, saltHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derived, expected) == 1
}

func deriveKey(password, saltHex string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

var (
	dummyRecordOnce sync.Once
	dummyRecord     string
)

// dummyPasswordRecord は存在しないユーザーのログイン時に照合するダミーレコードを返す。
// 既存ユーザーと同じKDFコストを払わせ、応答時間からユーザーの有無を推測させない。
func dummyPasswordRecord() string {
	dummyRecordOnce.Do(func() {
		record, err := HashPassword("not-a-real-password")
		if err != nil {
			// 乱数源が使えない場合でも照合コストは同等にする
			record = strings.Repeat("0", scryptKeyLen*2) + recordSeparator + strings.Repeat("0", saltLen*2)
		}
		dummyRecord = record
	})
	return dummyRecord
}
