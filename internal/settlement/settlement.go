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

package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

type Kind string

const (
	KindFulfill Kind = "fulfill"
	KindRelease Kind = "release"
)

var (
	ErrQueueFull = errors.New("settlement queue full")
	ErrStopped   = errors.New("settlement dispatcher stopped")
)

// Request asks the external signing channel to pay out a resolved intent
type Request struct {
	Id           string
	Kind         Kind
	IntentHash   string
	DepositId    uint64
	Asset        string
	Amount       *uint256.Int
	ProtocolFee  *uint256.Int
	FeeRecipient string
	Chain        string
	Recipient    string
	RequestedAt  time.Time
}

// Payout is the amount the recipient receives after the protocol fee.
func (r Request) Payout() *uint256.Int {
	if r.Amount == nil {
		return new(uint256.Int)
	}
	if r.ProtocolFee == nil || r.ProtocolFee.Gt(r.Amount) {
		return new(uint256.Int).Set(r.Amount)
	}
	return new(uint256.Int).Sub(r.Amount, r.ProtocolFee)
}

// Signer is the destination-chain signing collaborator.
type Signer interface {
	Sign(ctx context.Context, req Request) error
}

// LogSigner records requests without signing anything. It stands in for the
// chain-specific signer in local deployments.
type LogSigner struct{}

func (LogSigner) Sign(_ context.Context, req Request) error {
	zap.L().Info("Settlement signature requested",
		zap.String("request_id", req.Id),
		zap.String("kind", string(req.Kind)),
		zap.String("intent_hash", req.IntentHash),
		zap.Uint64("deposit_id", req.DepositId),
		zap.String("asset", req.Asset),
		zap.String("amount", decimalString(req.Amount)),
		zap.String("payout", req.Payout().Dec()),
		zap.String("protocol_fee", decimalString(req.ProtocolFee)),
		zap.String("chain", req.Chain),
		zap.String("recipient", req.Recipient))
	return nil
}

func decimalString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
