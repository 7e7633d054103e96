package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ovs/internal/health"
	"github.com/vladislavdragonenkov/ovs/internal/service/order"
)

const defaultPingTimeout = 2 * time.Second

type placeOrderRequest struct {
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Qty        int32 `json:"qty"`
}

type orderResponse struct {
	ID         string    `json:"id"`
	CustomerID int64     `json:"customer_id"`
	ProductID  int64     `json:"product_id"`
	Qty        int32     `json:"qty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		ProductID:  o.ProductID,
		Qty:        o.Qty,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

// newMux собирает HTTP-роутинг процесса. orderSvc может быть nil:
// worker-процесс поднимает только служебные endpoints.
func newMux(orderSvc *order.Service, healthHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if orderSvc != nil {
		mux.HandleFunc("POST /orders", handlePlaceOrder(orderSvc))
		mux.HandleFunc("GET /orders/{id}", handleGetOrder(orderSvc))
	}

	return mux
}

func handlePlaceOrder(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		created, err := svc.PlaceOrder(r.Context(), domain.Order{
			CustomerID: req.CustomerID,
			ProductID:  req.ProductID,
			Qty:        req.Qty,
		})
		if err != nil {
			writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusCreated, toOrderResponse(created))
	}
}

func handleGetOrder(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := svc.GetOrder(r.PathValue("id"))
		if err != nil {
			writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(found))
	}
}

// statusForError переводит доменные ошибки в HTTP-коды.
// Timeout — это fail closed отказ, но отдаётся отдельным кодом,
// чтобы клиент мог отличить его от явного reject и повторить запрос.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidationTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrBrokerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrProductRequired),
		errors.Is(err, domain.ErrQtyInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// startHTTPServer запускает HTTP-сервер процесса и останавливает его по ctx.
func startHTTPServer(ctx context.Context, addr string, orderSvc *order.Service, healthHandler *healthcheck.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newMux(orderSvc, healthHandler)}

	go func() {
		logger.Infof("http server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
