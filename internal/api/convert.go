package api

import (
	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"
)

func toDepositResponse(d *models.Deposit) models.DepositResponse {
	return models.DepositResponse{
		DepositId:          d.Id,
		Depositor:          d.Depositor,
		Delegate:           d.Delegate,
		Token:              d.Token,
		TotalDeposit:       amountString(d.Total),
		RemainingDeposits:  amountString(d.Remaining),
		OutstandingIntents: amountString(d.Outstanding),
		MinIntentAmount:    amountString(d.MinIntentAmount),
		MaxIntentAmount:    amountString(d.MaxIntentAmount),
		PaymentMethods:     d.PaymentMethods,
		CreatedAtMs:        unixMs(d.CreatedAt),
	}
}

func toIntentResponse(i *models.Intent) models.IntentResponse {
	return models.IntentResponse{
		IntentHash:    i.Hash,
		Buyer:         i.Buyer,
		DepositId:     i.DepositId,
		Amount:        amountString(i.Amount),
		PaymentMethod: i.PaymentMethod,
		CurrencyCode:  i.CurrencyCode,
		Recipient:     i.Recipient,
		Chain:         i.Chain,
		Status:        string(i.Status),
		ProofSize:     i.ProofSize,
		CreatedAtMs:   unixMs(i.CreatedAt),
		UpdatedAtMs:   unixMs(i.UpdatedAt),
	}
}

func toFundingResponse(f *models.FundingMeta) models.FundingResponse {
	return models.FundingResponse{
		DepositId:          f.DepositId,
		AssetId:            f.AssetId,
		RefundTo:           f.RefundTo,
		QuoteId:            f.QuoteId,
		DepositAddress:     f.DepositAddress,
		DepositMemo:        f.DepositMemo,
		QuoteExpiresAtMs:   unixMs(f.QuoteExpiresAt),
		QuoteGeneration:    f.QuoteGeneration,
		FundingStartedAtMs: unixMs(f.FundingStartedAt),
		TopUpDeadlineAtMs:  unixMs(f.TopUpDeadline),
		Status:             string(f.Status),
		FundedAmount:       amountString(f.FundedAmount),
		OriginTxHash:       f.OriginTxHash,
		LastIntentsStatus:  f.LastExternalStatus,
		FailureReason:      f.FailureReason,
		UpdatedAtMs:        unixMs(f.UpdatedAt),
	}
}

func toTransferResponse(t *escrow.TransferDetails) models.TransferDetailsResponse {
	return models.TransferDetailsResponse{
		IntentHash:       t.IntentHash,
		DepositId:        t.DepositId,
		Amount:           amountString(t.Amount),
		CurrencyCode:     t.CurrencyCode,
		PaymentMethodRaw: t.PaymentMethodRaw,
		Platform:         t.Platform,
		Tagname:          t.Tagname,
		Memo:             t.Memo,
	}
}

func toSummaryResponse(s escrow.DepositSummary) models.DepositSummaryResponse {
	return models.DepositSummaryResponse{
		DepositId:         s.DepositId,
		AssetId:           s.AssetId,
		Depositor:         s.Depositor,
		Delegate:          s.Delegate,
		PaymentMethods:    s.PaymentMethods,
		MinIntentAmount:   amountString(s.MinIntentAmount),
		MaxIntentAmount:   amountString(s.MaxIntentAmount),
		FundedAmount:      amountString(s.FundedAmount),
		Remaining:         amountString(s.Remaining),
		TopUpDeadlineAtMs: unixMs(s.TopUpDeadline),
		QuoteExpiresAtMs:  unixMs(s.QuoteExpiresAt),
		Status:            string(s.Status),
		UpdatedAtMs:       unixMs(s.UpdatedAt),
	}
}

func toProtocolConfigResponse(c *models.ProtocolConfig) models.ProtocolConfigResponse {
	return models.ProtocolConfigResponse{
		Owner:                c.Owner,
		ProtocolFeeBps:       c.ProtocolFeeBps,
		ProtocolFeeRecipient: c.ProtocolFeeRecipient,
		MaxIntentsPerDeposit: c.MaxIntentsPerDeposit,
		OracleAccount:        c.OracleAccount,
		StorageFee:           amountString(c.StorageFee),
		TopUpWindowMs:        c.TopUpWindow.Milliseconds(),
		MaxQuoteRotations:    c.MaxQuoteRotations,
		DepositCounter:       c.DepositCounter,
		IntentCounter:        c.IntentCounter,
	}
}
