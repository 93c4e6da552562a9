package httpapi

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"

	"github.com/solward/flywheel/internal/httputil"
)

type walletChallengeRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type walletChallengeResponse struct {
	Nonce string `json:"nonce"`
}

func (s *Server) handleWalletChallenge(w http.ResponseWriter, r *http.Request) {
	var req walletChallengeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.WalletAddress == "" {
		httputil.BadRequest(w, "wallet_address required")
		return
	}
	nonce := s.auth.IssueNonce(req.WalletAddress)
	httputil.WriteJSON(w, http.StatusOK, walletChallengeResponse{Nonce: nonce})
}

type walletVerifyRequest struct {
	WalletAddress string `json:"wallet_address"`
	PublicKeyHex  string `json:"public_key_hex"`
	SignatureB64  string `json:"signature_base64"`
}

type walletVerifyResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleWalletVerify(w http.ResponseWriter, r *http.Request) {
	var req walletVerifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	pubKeyBytes, err := hex.DecodeString(req.PublicKeyHex)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		httputil.BadRequest(w, "invalid public_key_hex")
		return
	}
	token, err := s.auth.VerifyWalletSignature(req.WalletAddress, ed25519.PublicKey(pubKeyBytes), req.SignatureB64)
	if err != nil {
		httputil.Unauthorized(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, walletVerifyResponse{Token: token})
}
