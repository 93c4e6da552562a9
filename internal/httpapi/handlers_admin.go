package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solward/flywheel/internal/admin"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/httputil"
)

type updateConfigRequest struct {
	PlatformFeeFraction   *float64 `json:"platform_fee_fraction,omitempty"`
	MaxTradesPerMinute    *int     `json:"max_trades_per_minute,omitempty"`
	FastClaimThreshold    *string  `json:"fast_claim_threshold,omitempty"`
	PlatformFastClaimThresh *string `json:"platform_fast_claim_threshold,omitempty"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.PlatformFeeFraction != nil {
		if err := s.admin.UpdatePlatformFee(r.Context(), *req.PlatformFeeFraction); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	if req.MaxTradesPerMinute != nil {
		if err := s.admin.UpdateMaxTradesPerMinute(r.Context(), *req.MaxTradesPerMinute); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	if req.FastClaimThreshold != nil && req.PlatformFastClaimThresh != nil {
		if err := s.admin.UpdateClaimThresholdAmounts(r.Context(), *req.FastClaimThreshold, *req.PlatformFastClaimThresh); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.admin.ListJobs(r.Context())
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	job := admin.JobName(mux.Vars(r)["job"])
	if err := s.admin.TriggerJob(r.Context(), job); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type setJobEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetJobEnabled(w http.ResponseWriter, r *http.Request) {
	job := admin.JobName(mux.Vars(r)["job"])
	var req setJobEnabledRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.admin.SetJobEnabled(r.Context(), job, req.Enabled); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWheel(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.admin.Wheel(r.Context())
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleUpsertTokenConfig(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["id"]
	var cfg domain.TokenConfig
	if !httputil.DecodeJSON(w, r, &cfg) {
		return
	}
	cfg.TokenID = tokenID
	if err := s.admin.UpsertTokenConfig(r.Context(), cfg); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
