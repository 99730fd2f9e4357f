// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限種別を表す。
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// IsValid はroleが定義済みの値かどうかを判定する。
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleAdmin:
		return true
	default:
		return false
	}
}

// Language はUI表示言語を表す。
type Language string

const (
	LanguageEnglish     Language = "en"
	LanguageFrench      Language = "fr"
	LanguageKinyarwanda Language = "rw"
)

// SupportedLanguages はユーザーが選択可能な言語の一覧。
var SupportedLanguages = []Language{LanguageEnglish, LanguageFrench, LanguageKinyarwanda}

// IsValid はlanguageがサポート対象かどうかを判定する。
func (l Language) IsValid() bool {
	for _, supported := range SupportedLanguages {
		if l == supported {
			return true
		}
	}
	return false
}

// User はポータル利用者を表す。
// PasswordHashは "hashHex.saltHex" 形式で、平文パスワードは保持しない。
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	StudentID    *string   `json:"studentId"`
	Role         Role      `json:"role"`
	ProfileImage *string   `json:"profileImage"`
	Language     Language  `json:"language"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin は管理者ユーザーかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Public はパスワードハッシュを取り除いたコピーを返す。
// セッショントークンに埋め込む値やAPIレスポンスに使用する。
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}
