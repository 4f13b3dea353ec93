/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"
	"strings"

	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleCreateDeposit locks liquidity for the caller in one step
func (s *LedgerService) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDepositRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := escrow.CreateDepositParams{
		Token:          req.Token,
		PaymentMethods: req.PaymentMethods,
		Delegate:       req.Delegate,
	}
	var err error
	if params.Amount, err = parseAmount("amount", req.Amount); err != nil {
		writeError(w, r, err)
		return
	}
	if params.MinIntentAmount, err = parseAmount("min_intent_amount", req.MinIntentAmount); err != nil {
		writeError(w, r, err)
		return
	}
	if params.MaxIntentAmount, err = parseAmount("max_intent_amount", req.MaxIntentAmount); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.engine.CreateDeposit(r.Context(), call(r), params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	zap.L().Info("Deposit created",
		zap.Uint64("deposit_id", id),
		zap.String("depositor", CallerFromContext(r.Context())),
		zap.String("token", req.Token),
		zap.String("amount", req.Amount))

	writeJSON(w, http.StatusCreated, models.DepositCreatedResponse{DepositId: id})
}

func (s *LedgerService) handleWithdrawDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := s.engine.WithdrawDeposit(r.Context(), call(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.WithdrawResponse{DepositId: id, Amount: amountString(amount)})
}

func (s *LedgerService) handleSetDelegate(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.SetDelegateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	noContent(w, r, s.engine.SetDelegate(r.Context(), call(r), id, req.Delegate))
}

func (s *LedgerService) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.engine.GetDeposit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositResponse(d))
}

func (s *LedgerService) handleGetDepositIntents(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hashes, err := s.engine.GetDepositIntents(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.IntentHashesResponse{IntentHashes: nonNil(hashes)})
}

func (s *LedgerService) handleGetAccountDeposits(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.GetAccountDeposits(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, models.DepositIdsResponse{DepositIds: ids})
}

// handleGetOpenDeposits pages through funded listings of one asset, newest first
func (s *LedgerService) handleGetOpenDeposits(w http.ResponseWriter, r *http.Request) {
	asset := strings.TrimSpace(r.URL.Query().Get("asset"))
	if asset == "" {
		writeError(w, r, escrow.ErrAssetRequired)
		return
	}
	page, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summaries, err := s.engine.GetOpenDepositsByAsset(r.Context(), asset, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := models.ListingsResponse{AssetId: asset, Listings: make([]models.DepositSummaryResponse, 0, len(summaries))}
	for _, summary := range summaries {
		out.Listings = append(out.Listings, toSummaryResponse(summary))
	}
	writeJSON(w, http.StatusOK, out)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
