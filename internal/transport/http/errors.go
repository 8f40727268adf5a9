package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// errorBody — стабильный формат ошибки для клиентов.
type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError переводит доменную ошибку в HTTP-статус и структурный
// JSON. Все ошибки восстанавливаются на границе запроса; процесс
// никогда не падает из-за ошибки обработчика.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	status, body := classifyError(err)

	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	}

	respondJSON(w, status, errorResponse{Error: body})
}

func classifyError(err error) (int, errorBody) {
	var (
		shortfall  *domain.StockShortfallError
		lineMissed *domain.CartLineNotFoundError
		transition *domain.StatusTransitionError
		gateway    *domain.GatewayError
	)

	switch {
	case errors.As(err, &shortfall):
		return http.StatusBadRequest, errorBody{
			Code:    "insufficient_stock",
			Message: shortfall.Error(),
			Details: map[string]interface{}{
				"productId":         shortfall.ProductID,
				"availableStock":    shortfall.Available,
				"requestedQuantity": shortfall.Requested,
			},
		}
	case errors.As(err, &lineMissed):
		return http.StatusNotFound, errorBody{
			Code:    "cart_item_not_found",
			Message: lineMissed.Error(),
			Details: map[string]interface{}{
				"itemId":       lineMissed.LineID,
				"validItemIds": lineMissed.ValidLineIDs,
			},
		}
	case errors.As(err, &transition):
		allowed := make([]string, 0)
		for _, s := range transition.From.AllowedTransitions() {
			allowed = append(allowed, string(s))
		}
		return http.StatusBadRequest, errorBody{
			Code:    "invalid_status_transition",
			Message: transition.Error(),
			Details: map[string]interface{}{
				"from":    string(transition.From),
				"to":      string(transition.To),
				"allowed": allowed,
			},
		}
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusBadRequest, errorBody{Code: "cart_empty", Message: err.Error()}
	case errors.Is(err, domain.ErrSignatureMismatch):
		return http.StatusBadRequest, errorBody{Code: "invalid_signature", Message: err.Error()}
	case errors.Is(err, domain.ErrPaymentNotCaptured):
		return http.StatusBadRequest, errorBody{Code: "payment_not_captured", Message: err.Error()}
	case errors.Is(err, domain.ErrPaymentAlreadyVerified):
		return http.StatusConflict, errorBody{Code: "payment_already_verified", Message: err.Error()}
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict, errorBody{Code: "version_conflict", Message: err.Error()}
	case errors.Is(err, domain.ErrOrderAccessDenied):
		return http.StatusForbidden, errorBody{Code: "forbidden", Message: err.Error()}
	case errors.Is(err, domain.ErrAmountTooSmall):
		return http.StatusBadRequest, errorBody{Code: "invalid_amount", Message: err.Error()}
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		// Отсутствие учётных данных шлюза — фатальная ошибка
		// конфигурации с явным кодом, не generic-отказ.
		return http.StatusInternalServerError, errorBody{Code: "gateway_not_configured", Message: err.Error()}
	case errors.As(err, &gateway):
		return http.StatusInternalServerError, errorBody{Code: "gateway_error", Message: err.Error()}
	case errors.Is(err, domain.ErrQuantityInvalid),
		errors.Is(err, domain.ErrIdentityRequired),
		errors.Is(err, domain.ErrGuestContactRequired),
		errors.Is(err, domain.ErrAddressIncomplete),
		errors.Is(err, domain.ErrPaymentMethodInvalid),
		errors.Is(err, domain.ErrCartIdentityAmbiguous):
		return http.StatusBadRequest, errorBody{Code: "validation_error", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal server error"}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
