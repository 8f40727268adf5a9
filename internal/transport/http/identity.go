package http

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Идентичность приходит из двух источников: id авторизованного
// пользователя проставляет вышестоящий слой аутентификации, гостевой
// токен генерирует клиент. Токен — непрозрачная строка; сервер
// проверяет только непустоту.
const (
	headerUserID  = "X-User-Id"
	headerGuestID = "X-Guest-Id"
)

// identityFromRequest разрешает идентичность запроса с приоритетом
// авторизованного пользователя: гостевой токен от авторизованного
// вызова игнорируется. bodyGuestID — запасной источник токена из
// тела запроса.
func identityFromRequest(r *http.Request, bodyGuestID string) domain.Identity {
	guest := r.Header.Get(headerGuestID)
	if guest == "" {
		guest = bodyGuestID
	}
	return domain.ResolveIdentity(r.Header.Get(headerUserID), domain.GuestToken(guest))
}
