package httpapi

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/httputil"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/storage"
)

const pendingActivationWindow = 24 * time.Hour

type createPendingActivationRequest struct {
	Kind                   string `json:"kind"`
	ExpectedDepositAddress string `json:"expected_deposit_address"`
	MinAmount              string `json:"min_amount"`
	OwnerID                string `json:"owner_id"`
	Mint                   string `json:"mint"`
	Symbol                 string `json:"symbol"`
	Decimals               int    `json:"decimals"`
	Source                 string `json:"source"`
	Algorithm              string `json:"algorithm"`
	DevWallet              string `json:"dev_wallet"`
	OpsWallet              string `json:"ops_wallet"`
}

func (s *Server) handleCreatePendingActivation(w http.ResponseWriter, r *http.Request) {
	var req createPendingActivationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.ExpectedDepositAddress == "" || req.OwnerID == "" || req.Mint == "" {
		httputil.BadRequest(w, "expected_deposit_address, owner_id, and mint are required")
		return
	}
	minAmount, err := numeric.FromString(req.MinAmount)
	if err != nil {
		httputil.BadRequest(w, "invalid min_amount")
		return
	}

	cfg := domain.DefaultTokenConfigFor("", domain.Algorithm(req.Algorithm))
	pending := domain.PendingActivation{
		ID:                     uuid.New().String(),
		Kind:                   domain.PendingKind(req.Kind),
		ExpectedDepositAddress: req.ExpectedDepositAddress,
		MinAmount:              minAmount,
		CreatedAt:              time.Now().UTC(),
		ExpiresAt:              time.Now().UTC().Add(pendingActivationWindow),
		Status:                 domain.PendingAwaitingDeposit,
		Payload: domain.ActivationPayload{
			OwnerID:   req.OwnerID,
			Mint:      req.Mint,
			Symbol:    req.Symbol,
			Decimals:  req.Decimals,
			Source:    domain.TokenSource(req.Source),
			DevWallet: req.DevWallet,
			OpsWallet: req.OpsWallet,
			Config:    cfg,
		},
	}
	if err := s.store.CreatePendingActivation(r.Context(), pending); err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": pending.ID})
}

func (s *Server) handleCancelPendingActivation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.CancelPendingActivation(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			httputil.NotFound(w, "pending activation not found")
			return
		}
		httputil.InternalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reactivateTokenRequest struct {
	WalletAddress string `json:"wallet_address"`
	PublicKeyHex  string `json:"public_key_hex"`
	SignatureB64  string `json:"signature_base64"`
}

// handleReactivateToken re-enables a token auto-suspended after repeated
// signer failures, once the caller proves control of one of its wallets by
// signing the same nonce challenge used for wallet login (§4.9).
func (s *Server) handleReactivateToken(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["id"]
	var req reactivateTokenRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	pubKeyBytes, err := hex.DecodeString(req.PublicKeyHex)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		httputil.BadRequest(w, "invalid public_key_hex")
		return
	}

	verify := func(walletAddress string) bool {
		if walletAddress != req.WalletAddress {
			return false
		}
		_, err := s.auth.VerifyWalletSignature(req.WalletAddress, ed25519.PublicKey(pubKeyBytes), req.SignatureB64)
		return err == nil
	}

	if err := s.store.ReactivateSuspended(r.Context(), tokenID, verify); err != nil {
		if err == storage.ErrConflict {
			httputil.Conflict(w, "wallet ownership could not be verified")
			return
		}
		httputil.InternalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
