package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/service"
)

// Services bundles everything the router dispatches to.
type Services struct {
	Properties  *service.PropertyService
	Accounts    *service.AccountService
	Investments *service.InvestmentService
	Market      *service.MarketService
	Admin       *service.AdminService
	// Health reports whether storage is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(svcs Services, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	propertyH := NewPropertyHandler(svcs.Properties)
	accountH := NewAccountHandler(svcs.Accounts)
	investmentH := NewInvestmentHandler(svcs.Investments)
	marketH := NewMarketHandler(svcs.Market)
	adminH := NewAdminHandler(svcs.Admin)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if svcs.Health != nil {
			if err := svcs.Health(r.Context()); err != nil {
				WriteError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/properties", propertyH.Register)
	r.Get("/properties/{property_id}", propertyH.Get)

	r.Route("/accounts/{user_id}", func(r chi.Router) {
		r.Get("/balance", accountH.GetBalance)
		r.Post("/deposits", accountH.Deposit)
		r.Post("/withdrawals", accountH.Withdraw)
		r.Put("/verification", accountH.SetVerification)
		r.Get("/transactions", accountH.ListTransactions)
		r.Get("/positions/{property_id}", accountH.GetPosition)
	})

	r.Post("/investments", investmentH.Invest)
	r.Get("/investments/{investment_id}", investmentH.Get)

	r.Post("/sell-requests", marketH.CreateSellRequest)
	r.Route("/sell-requests/{sell_request_id}", func(r chi.Router) {
		r.Get("/", marketH.GetSellRequest)
		r.Post("/cancel", marketH.CancelSellRequest)
		r.Post("/holds", marketH.PlaceHold)
	})

	r.Get("/holds/{hold_id}", marketH.GetHold)
	r.Post("/holds/{hold_id}/confirm", marketH.ConfirmHold)
	r.Post("/holds/{hold_id}/cancel", marketH.CancelHold)

	r.Post("/admin/sweep", adminH.Sweep)
	r.Post("/admin/positions/rebuild", adminH.RebuildPositions)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.status >= http.StatusInternalServerError {
				logger.Error("request", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON rejects POST, PUT, and PATCH requests that carry a body
// whose Content-Type is not application/json. Bodiless POSTs such as
// /admin/sweep pass through.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && (ct == "" || !strings.HasPrefix(ct, "application/json")) {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
