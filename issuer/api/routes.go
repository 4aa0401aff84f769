package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/smartpassport/passport-node/issuer/metrics"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes(rateLimit string) (http.Handler, error) {
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(metricsMiddleware)
	if rateLimit != "" {
		limit, err := rateLimitMiddleware(rateLimit)
		if err != nil {
			return nil, err
		}
		api.Use(limit)
	}

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Cost quotes
	api.HandleFunc("/get-nft-cost", s.handleNFTCost).Methods(http.MethodGet)
	api.HandleFunc("/get-collection-cost", s.handleCollectionCost).Methods(http.MethodGet)

	// Transaction preparation and submission
	api.HandleFunc("/create-nft-transaction", s.handleCreateNFT).Methods(http.MethodPost)
	api.HandleFunc("/create-collection-transaction", s.handleCreateCollection).Methods(http.MethodPost)
	api.HandleFunc("/submit-signed-transaction", s.handleSubmit).Methods(http.MethodPost)

	// Passport images
	api.HandleFunc("/upload-image", s.handleUploadImage).Methods(http.MethodPost)

	// Treasury
	api.HandleFunc("/treasury/info", s.handleTreasuryInfo).Methods(http.MethodGet)
	api.HandleFunc("/treasury/withdrawals", s.handleWithdrawals).Methods(http.MethodGet)
	api.HandleFunc("/treasury/withdraw", s.handleWithdraw).Methods(http.MethodPost)

	return router, nil
}
