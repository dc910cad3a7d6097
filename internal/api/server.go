package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
// When adminAPIKey is set, refresh requests need it as a bearer token.
func NewServer(port string, handler *Handler, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewMux(handler, adminAPIKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers all routes on a new ServeMux.
func NewMux(handler *Handler, adminAPIKey string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/access/{chainId}/{token}", handler.GetAccess)
	mux.HandleFunc("GET /api/v1/access/{token}", handler.GetAccess)
	mux.HandleFunc("GET /api/v1/assets/{did}/access", handler.GetAssetAccess)
	mux.HandleFunc("GET /api/v1/assets/{did}/services/{index}/affordable", handler.GetAffordable)
	mux.HandleFunc("GET /api/v1/assets/{did}/services/{index}/order-price", handler.GetOrderPrice)
	mux.HandleFunc("GET /api/v1/prices", handler.GetPrices)
	mux.HandleFunc("GET /api/v1/prices/history", handler.GetPriceHistory)
	mux.HandleFunc("GET /api/v1/convert", handler.Convert)

	refreshHandler := http.HandlerFunc(handler.RefreshAsset)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/assets/{did}/refresh", requireAuth(adminAPIKey, refreshHandler))
	} else {
		mux.Handle("POST /api/v1/assets/{did}/refresh", refreshHandler)
	}

	return mux
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
