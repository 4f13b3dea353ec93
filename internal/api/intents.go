package api

import (
	"net/http"

	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *LedgerService) handleSignalIntent(w http.ResponseWriter, r *http.Request) {
	var req models.SignalIntentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := s.engine.SignalIntent(r.Context(), call(r), escrow.SignalIntentParams{
		DepositId:     req.DepositId,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		CurrencyCode:  req.CurrencyCode,
		Recipient:     req.Recipient,
		Chain:         req.Chain,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	zap.L().Info("Intent signaled",
		zap.String("intent_hash", hash),
		zap.Uint64("deposit_id", req.DepositId),
		zap.String("amount", req.Amount))

	writeJSON(w, http.StatusCreated, models.IntentSignaledResponse{IntentHash: hash})
}

func (s *LedgerService) handleCancelIntent(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.engine.CancelIntent(r.Context(), call(r), chi.URLParam(r, "hash")))
}

func (s *LedgerService) handleFulfillIntent(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.engine.FulfillIntent(r.Context(), call(r), chi.URLParam(r, "hash")))
}

func (s *LedgerService) handleReleaseIntent(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.engine.ReleaseIntent(r.Context(), call(r), chi.URLParam(r, "hash")))
}

func (s *LedgerService) handleFulfillWithProof(w http.ResponseWriter, r *http.Request) {
	var req models.ProofRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w, r, s.engine.FulfillIntentWithProof(r.Context(), call(r), chi.URLParam(r, "hash"), req.Proof))
}

func (s *LedgerService) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := s.engine.GetIntent(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntentResponse(intent))
}

func (s *LedgerService) handleGetTransferDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.engine.GetIntentTransferDetails(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferResponse(details))
}

func (s *LedgerService) handleGetAccountIntents(w http.ResponseWriter, r *http.Request) {
	hashes, err := s.engine.GetAccountIntents(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.IntentHashesResponse{IntentHashes: nonNil(hashes)})
}
