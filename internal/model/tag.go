package model

import "time"

// DefaultTagColor は色指定を省略した場合のタグ色。
const DefaultTagColor = "#6B7280"

// Tag は連絡先に付与するユーザー定義のラベルを表す。
// タグ名はユーザー内で一意（大文字小文字を区別しない）。
type Tag struct {
	ID        string
	UserID    string
	Name      string
	Color     string // #RRGGBB
	CreatedAt time.Time
}

// TagWithCount はタグと付与先連絡先数の組。一覧表示用。
type TagWithCount struct {
	Tag
	ContactCount int
}

// IsValidTagColor は #RRGGBB 形式の色指定かどうかを判定する。
func IsValidTagColor(color string) bool {
	if len(color) != 7 || color[0] != '#' {
		return false
	}
	for _, r := range color[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
