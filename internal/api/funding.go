package api

import (
	"fmt"
	"net/http"
	"time"

	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var (
	ErrUnattestedAttachment = fmt.Errorf("%w: attached_deposit requires a payment token", escrow.ErrUnauthorized)
	ErrReceiptSpent         = fmt.Errorf("%w: payment receipt already spent", escrow.ErrFailedPrecondition)
)

// handleRegisterFunding registers a deposit that is funded later through the
// oracle workflow. The attached deposit must cover the storage fee.
func (s *LedgerService) handleRegisterFunding(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterFundingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c := call(r)
	params := escrow.RegisterFundingParams{
		AssetId:        req.AssetId,
		PaymentMethods: req.PaymentMethods,
		Delegate:       req.Delegate,
		RefundTo:       req.RefundTo,
	}
	var err error
	if params.ExpectedAmount, err = parseAmount("expected_amount", req.ExpectedAmount); err != nil {
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
	if c.Attached, err = s.attachedDeposit(r, req.AttachedDeposit); err != nil {
		writeError(w, r, err)
		return
	}

	payment, paid := PaymentFromContext(r.Context())
	if paid && !s.receipts.spend(payment.ReceiptId, payment.ExpiresAt) {
		writeError(w, r, ErrReceiptSpent)
		return
	}

	id, err := s.engine.RegisterDepositIntent(r.Context(), c, params)
	if err != nil {
		if paid {
			s.receipts.refund(payment.ReceiptId)
		}
		writeError(w, r, err)
		return
	}

	zap.L().Info("Funding workflow registered",
		zap.Uint64("deposit_id", id),
		zap.String("asset_id", req.AssetId),
		zap.String("expected_amount", req.ExpectedAmount))

	writeJSON(w, http.StatusCreated, models.DepositCreatedResponse{DepositId: id})
}

// attachedDeposit resolves the payment attached to a registration. A payment
// token is authoritative. The body field is honoured only on trusted hosts.
func (s *LedgerService) attachedDeposit(r *http.Request, claimed string) (*uint256.Int, error) {
	if payment, ok := PaymentFromContext(r.Context()); ok {
		if claimed != "" && claimed != payment.Amount {
			return nil, fmt.Errorf("%w: attached_deposit %s differs from payment token", escrow.ErrInvalidArgument, claimed)
		}
		return parseAmount("attached_deposit", payment.Amount)
	}
	if claimed == "" {
		return nil, nil
	}
	if !s.trustAttached {
		return nil, ErrUnattestedAttachment
	}
	return parseAmount("attached_deposit", claimed)
}

func (s *LedgerService) handleCancelFunding(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w, r, s.engine.CancelDepositIntent(r.Context(), call(r), id))
}

func (s *LedgerService) handleSetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.SetQuoteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var expiresAt time.Time
	if req.QuoteExpiresAtMs > 0 {
		expiresAt = time.UnixMilli(req.QuoteExpiresAtMs).UTC()
	}

	err = s.engine.SetQuote(r.Context(), call(r), escrow.SetQuoteParams{
		DepositId:      id,
		QuoteId:        req.QuoteId,
		DepositAddress: req.DepositAddress,
		DepositMemo:    req.DepositMemo,
		QuoteExpiresAt: expiresAt,
	})
	noContent(w, r, err)
}

func (s *LedgerService) handleMarkQuoteExpired(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.QuoteRefRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w, r, s.engine.MarkQuoteExpired(r.Context(), call(r), id, req.QuoteId))
}

func (s *LedgerService) handleConfirmFunding(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.ConfirmFundingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	funded, err := parseAmount("funded_amount", req.FundedAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = s.engine.ConfirmFunding(r.Context(), call(r), escrow.ConfirmFundingParams{
		DepositId:      id,
		QuoteId:        req.QuoteId,
		FundedAmount:   funded,
		OriginTxHash:   req.OriginTxHash,
		ExternalStatus: req.IntentsStatus,
	})
	noContent(w, r, err)
}

func (s *LedgerService) handleMarkFailed(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.MarkFailedRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w, r, s.engine.MarkFailed(r.Context(), call(r), id, req.QuoteId, req.IntentsStatus, req.Reason))
}

func (s *LedgerService) handleMarkTopUpExpired(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.MarkTopUpExpiredRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w, r, s.engine.MarkTopUpExpired(r.Context(), call(r), id, req.QuoteId, req.Reason))
}

func (s *LedgerService) handleGetDepositFunding(w http.ResponseWriter, r *http.Request) {
	id, err := depositIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.engine.GetDepositFunding(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFundingResponse(f))
}

func (s *LedgerService) handleGetDepositsByFundingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := models.ParseFundingStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", escrow.ErrInvalidArgument, err))
		return
	}
	page, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids, err := s.engine.GetDepositsByFundingStatus(r.Context(), status, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, models.DepositIdsResponse{DepositIds: ids})
}
