package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/application"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	verifier *webhook.Verifier
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewHandler serves the order API. A nil verifier accepts unsigned webhooks.
func NewHandler(log *slog.Logger, service *application.Service, verifier *webhook.Verifier) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		validate: newValidator(),
		tracer:   otel.Tracer("order-http"),
	}
}

type saveCustomerReq struct {
	CustomerID    string          `json:"customerId" validate:"required,max=64"`
	CustomerName  string          `json:"customerName" validate:"required,max=128"`
	CustomerEmail string          `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone string          `json:"customerPhone" validate:"required,numeric,min=10,max=15"`
	FeeType       string          `json:"feeType" validate:"required"`
	OrderAmount   decimal.Decimal `json:"orderAmount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
}

type createSessionReq struct {
	CustomerID string `json:"customerId" validate:"required"`
	FeeType    string `json:"feeType" validate:"required"`
}

type sessionResp struct {
	SessionID *string `json:"session_id"`
	OrderID   string  `json:"order_id"`
}

type webhookPayload struct {
	Data struct {
		Order struct {
			OrderID string `json:"order_id" validate:"required"`
		} `json:"order"`
		Payment struct {
			PaymentStatus string `json:"payment_status" validate:"required"`
		} `json:"payment"`
	} `json:"data"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/healthz", h.healthz)
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Post("/save", h.saveCustomer)
		r.Get("/{orderId}/verify", h.verifyStatus)
		r.Post("/status/webhook", h.receiveWebhook)
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) saveCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SaveCustomer")
	defer span.End()

	var req saveCustomerReq
	if !h.decode(w, r, &req) {
		return
	}

	o, created, err := h.service.RegisterCustomer(ctx, application.RegisterInput{
		CustomerID: req.CustomerID,
		Name:       req.CustomerName,
		Email:      req.CustomerEmail,
		Phone:      req.CustomerPhone,
		FeeType:    req.FeeType,
		Amount:     req.OrderAmount,
		Currency:   req.Currency,
	})
	if err != nil {
		h.fail(w, span, err)
		return
	}

	msg := "Customer saved successfully"
	if !created {
		msg = "Customer already registered"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg, "order_id": o.ID})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrderSession")
	defer span.End()

	var req createSessionReq
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.CreateOrderSession(ctx, req.CustomerID, req.FeeType)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", res.OrderID), attribute.Bool("session.allowed", res.Allowed))

	out := sessionResp{OrderID: res.OrderID}
	if res.SessionID != "" {
		out.SessionID = &res.SessionID
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) verifyStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx, span := h.tracer.Start(r.Context(), "VerifyStatus", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	status, err := h.service.VerifyStatus(ctx, orderID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "ReceiveWebhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "could not read body")
		return
	}

	if h.verifier != nil {
		err := h.verifier.Verify(r.Header.Get(webhook.TimestampHeader), r.Header.Get(webhook.SignatureHeader), body)
		if err != nil {
			h.log.Warn("webhook signature rejected", "remote", r.RemoteAddr)
			h.fail(w, span, err)
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Code: codeValidationFailed, Fields: fieldErrors(err)})
		return
	}

	orderID := payload.Data.Order.OrderID
	status := payload.Data.Payment.PaymentStatus
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("payment.status", status))

	o, err := h.service.ApplyWebhook(ctx, orderID, status)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	h.log.Info("webhook applied",
		"order_id", orderID,
		"payment_status", status,
		"fee_type", o.FeeType,
		"account", o.Account,
	)
	w.WriteHeader(http.StatusOK)
}

// decode reads and validates a JSON body, writing the 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Code: codeValidationFailed, Fields: fieldErrors(err)})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.Error("request failed", "code", code, "err", err)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError && code == codeInternalError {
		msg = "internal error"
	}
	if errors.Is(err, webhook.ErrInvalidSignature) {
		msg = "invalid signature"
	}
	writeError(w, status, code, msg)
}
