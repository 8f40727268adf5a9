package domain

import "strings"

// GuestToken — непрозрачный токен анонимного покупателя.
// Генерируется на клиенте; сервер проверяет только непустоту
// и никогда не трактует токен как доверенную учётную запись.
type GuestToken string

// Valid проверяет, что токен не пустой.
func (t GuestToken) Valid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Identity описывает, от чьего имени выполняется запрос:
// либо авторизованный пользователь, либо гостевая сессия.
type Identity struct {
	UserID string
	Guest  GuestToken
}

// ResolveIdentity применяет правило приоритета: если есть авторизованный
// пользователь, гостевой токен игнорируется.
func ResolveIdentity(userID string, guest GuestToken) Identity {
	if strings.TrimSpace(userID) != "" {
		return Identity{UserID: strings.TrimSpace(userID)}
	}
	if guest.Valid() {
		return Identity{Guest: GuestToken(strings.TrimSpace(string(guest)))}
	}
	return Identity{}
}

// IsUser сообщает, что запрос выполняет авторизованный пользователь.
func (i Identity) IsUser() bool { return i.UserID != "" }

// IsGuest сообщает, что запрос выполняет гость.
func (i Identity) IsGuest() bool { return i.UserID == "" && i.Guest.Valid() }

// IsZero означает полностью анонимный запрос без какой-либо идентичности.
func (i Identity) IsZero() bool { return !i.IsUser() && !i.IsGuest() }
