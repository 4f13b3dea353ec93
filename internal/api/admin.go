package api

import (
	"net/http"
	"time"

	"anypay-escrow-go/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleInitialize makes the caller the protocol owner.
func (s *LedgerService) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req models.InitializeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	owner := CallerFromContext(r.Context())
	err := s.engine.Initialize(r.Context(), owner, req.FeeRecipient)
	if err == nil {
		zap.L().Info("Protocol initialized over HTTP", zap.String("owner", owner))
	}
	noContent(w, r, err)
}

// setting decodes the body into T and hands it to apply.
func setting[T any](apply func(r *http.Request, req T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		noContent(w, r, apply(r, req))
	}
}

func (s *LedgerService) handleSetProtocolFee(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.SetProtocolFeeRequest) error {
		return s.engine.SetProtocolFee(r.Context(), call(r), req.FeeBps)
	})(w, r)
}

func (s *LedgerService) handleSetMaxIntents(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.SetMaxIntentsRequest) error {
		return s.engine.SetMaxIntentsPerDeposit(r.Context(), call(r), req.MaxIntentsPerDeposit)
	})(w, r)
}

func (s *LedgerService) handleSetOracle(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.SetOracleRequest) error {
		return s.engine.SetOracleAccount(r.Context(), call(r), req.OracleAccount)
	})(w, r)
}

func (s *LedgerService) handleSetStorageFee(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.SetStorageFeeRequest) error {
		fee, err := parseAmount("storage_fee", req.StorageFee)
		if err != nil {
			return err
		}
		return s.engine.SetStorageFee(r.Context(), call(r), fee)
	})(w, r)
}

func (s *LedgerService) handleSetTopUpWindow(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.SetTopUpWindowRequest) error {
		return s.engine.SetTopUpWindow(r.Context(), call(r), time.Duration(req.TopUpWindowMs)*time.Millisecond)
	})(w, r)
}

func (s *LedgerService) handleSetMaxQuoteRotations(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.SetMaxQuoteRotationsRequest) error {
		return s.engine.SetMaxQuoteRotations(r.Context(), call(r), req.MaxQuoteRotations)
	})(w, r)
}

func (s *LedgerService) handleAddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	setting(func(r *http.Request, req models.PaymentMethodRequest) error {
		return s.engine.AddPaymentMethod(r.Context(), call(r), chi.URLParam(r, "name"), req.Verifier, req.Currencies)
	})(w, r)
}

func (s *LedgerService) handleRemovePaymentMethod(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.engine.RemovePaymentMethod(r.Context(), call(r), chi.URLParam(r, "name")))
}

func (s *LedgerService) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.engine.GetOwner(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OwnerResponse{Owner: owner})
}

func (s *LedgerService) handleGetProtocolConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetProtocolConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProtocolConfigResponse(cfg))
}

func (s *LedgerService) handleGetFundingConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetFundingConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FundingConfigResponse{
		OracleAccount:     cfg.OracleAccount,
		StorageFee:        amountString(cfg.StorageFee),
		TopUpWindowMs:     cfg.TopUpWindow.Milliseconds(),
		MaxQuoteRotations: cfg.MaxQuoteRotations,
	})
}

func (s *LedgerService) handleGetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	pm, err := s.engine.GetPaymentMethod(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PaymentMethodResponse{
		Name:       pm.Name,
		Verifier:   pm.Verifier,
		Currencies: pm.Currencies,
	})
}
