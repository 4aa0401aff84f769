package api

import (
	"github.com/smartpassport/passport-node/issuer/storage"
	"github.com/smartpassport/passport-node/issuer/treasury"
)

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status     string `json:"status"`
	RPCHealthy bool   `json:"rpc_healthy"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// CreateNFTRequest is the body of POST /api/create-nft-transaction.
// MetadataURI may be omitted when Passport is given.
type CreateNFTRequest struct {
	MetadataURI string            `json:"metadata_uri" validate:"omitempty,url,max=200"`
	Name        string            `json:"name" validate:"required,max=32"`
	Symbol      string            `json:"symbol" validate:"omitempty,max=10"`
	FeePayer    string            `json:"fee_payer" validate:"required,solana_address"`
	Collection  string            `json:"collection" validate:"omitempty,solana_address"`
	Passport    *storage.Passport `json:"passport"`
}

// CreateCollectionRequest is the body of POST /api/create-collection-transaction
type CreateCollectionRequest struct {
	MetadataURI string `json:"metadata_uri" validate:"required,url,max=200"`
	Name        string `json:"name" validate:"required,max=32"`
	Symbol      string `json:"symbol" validate:"omitempty,max=10"`
	FeePayer    string `json:"fee_payer" validate:"required,solana_address"`
}

// SubmitRequest is the body of POST /api/submit-signed-transaction
type SubmitRequest struct {
	SignedTransaction string `json:"signed_transaction" validate:"required,base64"`
	TransactionType   string `json:"transaction_type" validate:"omitempty,oneof=nft collection"`
}

// WithdrawRequest is the body of POST /api/treasury/withdraw
type WithdrawRequest struct {
	Amount         uint64 `json:"amount" validate:"required,gt=0"`
	Recipient      string `json:"recipient" validate:"required,solana_address"`
	OwnerSignature string `json:"owner_signature" validate:"required"`
}

// UploadImageRequest is the body of POST /api/upload-image. Image is the
// base64-encoded file; ContentType is taken as declared.
type UploadImageRequest struct {
	Image       []byte `json:"image" validate:"required,max=10485760"`
	ContentType string `json:"content_type" validate:"required,max=64,startswith=image/"`
}

// UploadImageResponse is returned by POST /api/upload-image
type UploadImageResponse struct {
	ImageURI string `json:"image_uri"`
}

// WithdrawalsResponse is returned by GET /api/treasury/withdrawals
type WithdrawalsResponse struct {
	Withdrawals []treasury.Withdrawal `json:"withdrawals"`
}
