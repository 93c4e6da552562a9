package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solward/flywheel/internal/httputil"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/svcerr"
)

type tokenResponse struct {
	ID        string `json:"id"`
	Mint      string `json:"mint"`
	Symbol    string `json:"symbol"`
	Source    string `json:"source"`
	DevWallet string `json:"dev_wallet"`
	OpsWallet string `json:"ops_wallet"`
	Active    bool   `json:"active"`
	Graduated bool   `json:"graduated"`
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.store.ListTokens(r.Context())
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	resp := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp = append(resp, tokenResponse{
			ID: t.ID, Mint: t.Mint, Symbol: t.Symbol, Source: string(t.Source),
			DevWallet: t.DevWallet, OpsWallet: t.OpsWallet, Active: t.Active, Graduated: t.Graduated,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	token, err := s.store.GetTokenByMint(r.Context(), mint)
	if err != nil {
		if err == storage.ErrNotFound {
			httputil.WriteServiceError(w, svcerr.NotFound("token", mint))
			return
		}
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		ID: token.ID, Mint: token.Mint, Symbol: token.Symbol, Source: string(token.Source),
		DevWallet: token.DevWallet, OpsWallet: token.OpsWallet, Active: token.Active, Graduated: token.Graduated,
	})
}

type claimablePositionResponse struct {
	GrossAmount string `json:"gross_amount"`
}

func (s *Server) handleGetClaimable(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	token, err := s.store.GetTokenByMint(r.Context(), mint)
	if err != nil {
		if err == storage.ErrNotFound {
			httputil.WriteServiceError(w, svcerr.NotFound("token", mint))
			return
		}
		httputil.InternalError(w, err.Error())
		return
	}
	if s.claims == nil {
		httputil.InternalError(w, "claim platform not configured")
		return
	}
	positions, err := s.claims.ListClaimable(r.Context(), token.DevWallet)
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	resp := make([]claimablePositionResponse, 0, len(positions))
	for _, p := range positions {
		if p.TokenMint != token.Mint {
			continue
		}
		resp = append(resp, claimablePositionResponse{GrossAmount: p.GrossAmount.String()})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
