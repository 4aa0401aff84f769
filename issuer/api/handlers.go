package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/smartpassport/passport-node/issuer/constant"
	"github.com/smartpassport/passport-node/issuer/core"
	"github.com/smartpassport/passport-node/issuer/errors"
)

const (
	maxBodyBytes = 1 << 20

	// An image travels base64-encoded, a third larger than the file.
	maxImageBodyBytes = constant.MaxImageBytes/3*4 + 1<<12
)

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		RPCHealthy: s.service.Healthy(r.Context()),
	})
}

// handleNFTCost handles GET /api/get-nft-cost
func (s *Server) handleNFTCost(w http.ResponseWriter, r *http.Request) {
	quote, err := s.service.Quote(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleCollectionCost handles GET /api/get-collection-cost
func (s *Server) handleCollectionCost(w http.ResponseWriter, r *http.Request) {
	quote, err := s.service.QuoteCollection(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleCreateNFT handles POST /api/create-nft-transaction
func (s *Server) handleCreateNFT(w http.ResponseWriter, r *http.Request) {
	var req CreateNFTRequest
	if !s.decode(w, r, &req) {
		return
	}

	prepared, err := s.service.PrepareMint(r.Context(), core.MintInput{
		MetadataURI: req.MetadataURI,
		Name:        req.Name,
		Symbol:      req.Symbol,
		FeePayer:    req.FeePayer,
		Collection:  req.Collection,
		Passport:    req.Passport,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

// handleCreateCollection handles POST /api/create-collection-transaction
func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !s.decode(w, r, &req) {
		return
	}

	prepared, err := s.service.PrepareCollection(r.Context(), core.MintInput{
		MetadataURI: req.MetadataURI,
		Name:        req.Name,
		Symbol:      req.Symbol,
		FeePayer:    req.FeePayer,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

// handleSubmit handles POST /api/submit-signed-transaction
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.service.Submit(r.Context(), req.SignedTransaction, req.TransactionType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleUploadImage handles POST /api/upload-image
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req UploadImageRequest
	if !s.decodeLimit(w, r, &req, maxImageBodyBytes) {
		return
	}

	uri, err := s.service.UploadImage(r.Context(), req.Image, req.ContentType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadImageResponse{ImageURI: uri})
}

// handleTreasuryInfo handles GET /api/treasury/info
func (s *Server) handleTreasuryInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.TreasuryInfo(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleWithdrawals handles GET /api/treasury/withdrawals?limit=N
func (s *Server) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Kind:  string(errors.KindInput),
			})
			return
		}
		limit = n
	}

	list, err := s.service.TreasuryWithdrawals(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawalsResponse{Withdrawals: list})
}

// handleWithdraw handles POST /api/treasury/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.service.Withdraw(r.Context(), core.WithdrawInput{
		Amount:         req.Amount,
		Recipient:      req.Recipient,
		OwnerSignature: req.OwnerSignature,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decode reads and validates a JSON body into dst. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return s.decodeLimit(w, r, dst, maxBodyBytes)
}

func (s *Server) decodeLimit(w http.ResponseWriter, r *http.Request, dst interface{}, limit int64) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  string(errors.KindInput),
		})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: describe(err),
			Kind:  string(errors.KindInput),
		})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	} else {
		s.logger.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindInput, errors.KindMissingSignature:
		return http.StatusBadRequest
	case errors.KindUnauthorized:
		return http.StatusForbidden
	case errors.KindInsufficientFunds:
		return http.StatusConflict
	case errors.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	case errors.KindNetwork, errors.KindRPC, errors.KindUpload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
