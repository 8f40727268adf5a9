package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
)

// Handler связывает HTTP-поверхность магазина с сервисами.
type Handler struct {
	carts    *cart.Service
	checkout *checkout.Service
	verifier *payment.Verifier
	gateway  domain.PaymentGateway
	logger   *log.Entry
}

// NewHandler создаёт HTTP-обработчик.
func NewHandler(
	carts *cart.Service,
	checkoutSvc *checkout.Service,
	verifier *payment.Verifier,
	gateway domain.PaymentGateway,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		carts:    carts,
		checkout: checkoutSvc,
		verifier: verifier,
		gateway:  gateway,
		logger:   logger,
	}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
	GuestID   string `json:"guestId,omitempty"`
}

type setQuantityRequest struct {
	Quantity int32  `json:"quantity"`
	GuestID  string `json:"guestId,omitempty"`
}

type guestOnlyRequest struct {
	GuestID string `json:"guestId,omitempty"`
}

type addressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a addressRequest) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

type placeOrderRequest struct {
	Address       addressRequest `json:"address"`
	PaymentMethod string         `json:"paymentMethod"`
	GuestID       string         `json:"guestId,omitempty"`
	GuestEmail    string         `json:"guestEmail,omitempty"`
	GuestName     string         `json:"guestName,omitempty"`
}

type createPaymentOrderRequest struct {
	Address    addressRequest `json:"address"`
	GuestID    string         `json:"guestId,omitempty"`
	GuestEmail string         `json:"guestEmail,omitempty"`
	GuestName  string         `json:"guestName,omitempty"`
}

type verifyPaymentRequest struct {
	OrderID          string `json:"orderId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
	GuestID          string `json:"guestId,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"productId"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"priceMinor"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId,omitempty"`
	GuestEmail    string              `json:"guestEmail,omitempty"`
	GuestName     string              `json:"guestName,omitempty"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"paymentMethod"`
	PaymentStatus string              `json:"paymentStatus"`
	Currency      string              `json:"currency"`
	AmountMinor   int64               `json:"amountMinor"`
	Items         []orderItemResponse `json:"items"`
	Address       addressRequest      `json:"address"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// toOrderResponse собирает внешнее представление заказа. Гостевой
// токен корзины наружу не отдаётся.
func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return orderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		GuestEmail:    order.GuestContact.Email,
		GuestName:     order.GuestContact.Name,
		Status:        string(order.Status),
		PaymentMethod: string(order.Payment.Method),
		PaymentStatus: string(order.Payment.Status),
		Currency:      order.Currency,
		AmountMinor:   order.AmountMinor,
		Items:         items,
		Address: addressRequest{
			Line1:      order.Address.Line1,
			Line2:      order.Address.Line2,
			City:       order.Address.City,
			State:      order.Address.State,
			PostalCode: order.Address.PostalCode,
			Country:    order.Address.Country,
			Phone:      order.Address.Phone,
		},
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

// GetCart возвращает корзину с живыми аннотациями остатков.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")

	view, err := h.carts.GetCart(identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// AddItem добавляет товар в корзину.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	identity := identityFromRequest(r, req.GuestID)

	view, err := h.carts.AddItem(identity, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// SetItemQuantity меняет количество существующей строки корзины.
func (h *Handler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	identity := identityFromRequest(r, req.GuestID)
	itemID := chi.URLParam(r, "itemID")

	view, err := h.carts.SetItemQuantity(identity, itemID, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// RemoveItem удаляет строку корзины.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	req := decodeOptionalGuest(r)
	identity := identityFromRequest(r, req.GuestID)
	itemID := chi.URLParam(r, "itemID")

	view, err := h.carts.RemoveItem(identity, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ClearCart опустошает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	req := decodeOptionalGuest(r)
	identity := identityFromRequest(r, req.GuestID)

	if _, err := h.carts.Clear(identity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// PlaceOrder оформляет заказ без платёжного шлюза.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	identity := identityFromRequest(r, req.GuestID)

	order, err := h.checkout.PlaceOrder(checkout.PlaceOrderInput{
		Identity: identity,
		Address:  req.Address.toDomain(),
		Method:   domain.PaymentMethod(req.PaymentMethod),
		GuestContact: domain.GuestContact{
			Email: req.GuestEmail,
			Name:  req.GuestName,
		},
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// ListOrders возвращает заказы авторизованного пользователя.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")
	if !identity.IsUser() {
		writeError(w, h.logger, domain.ErrIdentityRequired)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, h.logger, domain.ErrQuantityInvalid)
			return
		}
		limit = parsed
	}

	orders, err := h.checkout.ListOrders(identity.UserID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": result})
}

// GetOrder возвращает один заказ с проверкой принадлежности.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")
	orderID := chi.URLParam(r, "orderID")

	order, err := h.checkout.GetOrder(identity, orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateOrderStatus выполняет переход статуса исполнения (back office).
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	orderID := chi.URLParam(r, "orderID")

	order, err := h.checkout.UpdateStatus(orderID, domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// CreatePaymentOrder оформляет заказ и открывает платёжное намерение.
func (h *Handler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req createPaymentOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	identity := identityFromRequest(r, req.GuestID)

	order, intent, err := h.checkout.OpenGatewayCheckout(checkout.PlaceOrderInput{
		Identity: identity,
		Address:  req.Address.toDomain(),
		GuestContact: domain.GuestContact{
			Email: req.GuestEmail,
			Name:  req.GuestName,
		},
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"orderId":        order.ID,
		"gatewayOrderId": intent.GatewayOrderID,
		"amount":         intent.AmountMinor,
		"currency":       intent.Currency,
		"key":            h.gateway.KeyID(),
	})
}

// VerifyPayment подтверждает оплату по клиентской подписи.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	identity := identityFromRequest(r, req.GuestID)

	order, err := h.verifier.Verify(identity, payment.VerifyInput{
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.GatewaySignature,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   toOrderResponse(order),
	})
}

// PaymentStatus возвращает пару статусов оплаты и исполнения заказа.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")
	if identity.IsZero() {
		writeError(w, h.logger, domain.ErrIdentityRequired)
		return
	}
	orderID := chi.URLParam(r, "orderID")

	paymentStatus, orderStatus, err := h.verifier.Status(identity, orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"paymentStatus": string(paymentStatus),
		"orderStatus":   string(orderStatus),
	})
}

// decodeOptionalGuest читает необязательное тело {"guestId": ...};
// отсутствие тела или мусор в нём не ошибка для DELETE-запросов.
func decodeOptionalGuest(r *http.Request) guestOnlyRequest {
	var req guestOnlyRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req
}

func writeBadJSON(w http.ResponseWriter) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Code:    "invalid_request",
		Message: "invalid JSON body",
	}})
}
