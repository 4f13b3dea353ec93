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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// LedgerService exposes the escrow engine over HTTP
type LedgerService struct {
	engine   *escrow.Engine
	auth     *Authenticator
	receipts *receiptBook
	router   http.Handler

	// honour attached_deposit from the request body
	trustAttached bool
}

func NewLedgerService(engine *escrow.Engine, cfg models.ServerConfig) (*LedgerService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	auth, err := NewAuthenticator(cfg.JwtSecret, cfg.JwtIssuer)
	if err != nil {
		return nil, err
	}

	s := &LedgerService{
		engine:        engine,
		auth:          auth,
		receipts:      newReceiptBook(),
		trustAttached: cfg.TrustAttachedDeposit,
	}
	if s.trustAttached {
		zap.L().Warn("Accepting attached deposits from request bodies")
	}
	s.router = s.routes(cfg.EnableMetrics)
	return s, nil
}

// Handler returns the configured router
func (s *LedgerService) Handler() http.Handler {
	return s.router
}

// Authenticator returns the token verifier used by the service
func (s *LedgerService) Authenticator() *Authenticator {
	return s.auth
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if _, err := s.engine.GetOwner(ctx); err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}
	return nil
}

func (s *LedgerService) routes(enableMetrics bool) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	if enableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		// views
		v1.Get("/protocol", s.handleGetProtocolConfig)
		v1.Get("/protocol/owner", s.handleGetOwner)
		v1.Get("/protocol/funding", s.handleGetFundingConfig)
		v1.Get("/payment-methods/{name}", s.handleGetPaymentMethod)
		v1.Get("/deposits/{depositId}", s.handleGetDeposit)
		v1.Get("/deposits/{depositId}/intents", s.handleGetDepositIntents)
		v1.Get("/deposits/{depositId}/funding", s.handleGetDepositFunding)
		v1.Get("/funding", s.handleGetDepositsByFundingStatus)
		v1.Get("/listings", s.handleGetOpenDeposits)
		v1.Get("/accounts/{account}/deposits", s.handleGetAccountDeposits)
		v1.Get("/accounts/{account}/intents", s.handleGetAccountIntents)
		v1.Get("/intents/{hash}", s.handleGetIntent)
		v1.Get("/intents/{hash}/transfer", s.handleGetTransferDetails)

		v1.Group(func(auth chi.Router) {
			auth.Use(s.auth.Middleware)

			auth.Post("/initialize", s.handleInitialize)
			auth.Put("/admin/protocol-fee", s.handleSetProtocolFee)
			auth.Put("/admin/max-intents", s.handleSetMaxIntents)
			auth.Put("/admin/oracle", s.handleSetOracle)
			auth.Put("/admin/storage-fee", s.handleSetStorageFee)
			auth.Put("/admin/topup-window", s.handleSetTopUpWindow)
			auth.Put("/admin/max-quote-rotations", s.handleSetMaxQuoteRotations)
			auth.Put("/payment-methods/{name}", s.handleAddPaymentMethod)
			auth.Delete("/payment-methods/{name}", s.handleRemovePaymentMethod)

			auth.Post("/deposits", s.handleCreateDeposit)
			auth.Post("/deposits/{depositId}/withdraw", s.handleWithdrawDeposit)
			auth.Put("/deposits/{depositId}/delegate", s.handleSetDelegate)

			auth.Post("/funding", s.handleRegisterFunding)
			auth.Post("/deposits/{depositId}/cancel", s.handleCancelFunding)
			auth.Post("/deposits/{depositId}/quote", s.handleSetQuote)
			auth.Post("/deposits/{depositId}/quote/expire", s.handleMarkQuoteExpired)
			auth.Post("/deposits/{depositId}/confirm", s.handleConfirmFunding)
			auth.Post("/deposits/{depositId}/fail", s.handleMarkFailed)
			auth.Post("/deposits/{depositId}/topup-expire", s.handleMarkTopUpExpired)

			auth.Post("/intents", s.handleSignalIntent)
			auth.Post("/intents/{hash}/cancel", s.handleCancelIntent)
			auth.Post("/intents/{hash}/fulfill", s.handleFulfillIntent)
			auth.Post("/intents/{hash}/proof", s.handleFulfillWithProof)
			auth.Post("/intents/{hash}/release", s.handleReleaseIntent)
		})
	})

	return r
}

func (s *LedgerService) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err, escrow.ErrorKind(err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// call builds the engine call context from the authenticated caller.
func call(r *http.Request) escrow.Call {
	return escrow.Call{Caller: CallerFromContext(r.Context())}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", escrow.ErrInvalidArgument, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func errorBody(err error, kind string) models.ErrorResponse {
	return models.ErrorResponse{Error: err.Error(), Kind: kind}
}

// statusForKind maps engine error kinds onto HTTP status codes.
func statusForKind(kind string) int {
	switch kind {
	case "invalid_argument":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "failed_precondition":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := escrow.ErrorKind(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, status, models.ErrorResponse{Error: "internal error", Kind: kind})
		return
	}
	writeJSON(w, status, errorBody(err, kind))
}

// noContent answers 204 on success.
func noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func depositIdParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "depositId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid deposit id %q", escrow.ErrInvalidArgument, raw)
	}
	return id, nil
}

// parseAmount reads a base-unit amount. Empty strings are left to the engine
// so its own validation error is reported.
func parseAmount(field, raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a base-10 integer", escrow.ErrInvalidArgument, field)
	}
	return v, nil
}

func pageParams(r *http.Request) (escrow.Page, error) {
	var page escrow.Page
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		from, err := strconv.Atoi(raw)
		if err != nil {
			return page, fmt.Errorf("%w: invalid from %q", escrow.ErrInvalidArgument, raw)
		}
		page.From = from
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return page, fmt.Errorf("%w: invalid limit %q", escrow.ErrInvalidArgument, raw)
		}
		page.Limit = &limit
	}
	return page, nil
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
