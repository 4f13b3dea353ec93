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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"anypay-escrow-go/internal/api"
	"anypay-escrow-go/internal/common"
	"anypay-escrow-go/internal/config"
	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"

	"go.uber.org/zap"
)

// initializeProtocol writes the protocol configuration unless it already exists
func initializeProtocol(ctx context.Context, engine *escrow.Engine, owner, feeRecipient string) error {
	err := engine.Initialize(ctx, owner, feeRecipient)
	if errors.Is(err, escrow.ErrAlreadyInitialized) {
		existing, ownerErr := engine.GetOwner(ctx)
		if ownerErr != nil {
			return ownerErr
		}
		zap.L().Info("Protocol already initialized", zap.String("owner", existing))
		if existing != owner {
			return fmt.Errorf("protocol is owned by %s, not %s", existing, owner)
		}
		return nil
	}
	if err != nil {
		return err
	}

	zap.L().Info("Protocol initialized",
		zap.String("owner", owner),
		zap.String("fee_recipient", feeRecipient))
	return nil
}

// paymentMethodCurrent reports whether the registry already holds seed as-is
func paymentMethodCurrent(ctx context.Context, engine *escrow.Engine, seed common.PaymentMethodSeed) (bool, error) {
	existing, err := engine.GetPaymentMethod(ctx, seed.Name)
	if errors.Is(err, escrow.ErrPaymentMethodNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.Verifier != seed.Verifier || len(existing.Currencies) != len(seed.Currencies) {
		return false, nil
	}
	for i := range seed.Currencies {
		if !strings.EqualFold(existing.Currencies[i], seed.Currencies[i]) {
			return false, nil
		}
	}
	return true, nil
}

func seedPaymentMethods(ctx context.Context, engine *escrow.Engine, owner, file string) {
	zap.L().Info("Loading payment methods", zap.String("file", file))
	seeds, err := common.LoadPaymentMethods(file)
	if err != nil {
		zap.L().Fatal("Failed to load payment methods", zap.Error(err))
	}

	var added, unchanged int
	var failed []string
	call := escrow.Call{Caller: owner}

	for _, seed := range seeds {
		current, err := paymentMethodCurrent(ctx, engine, seed)
		if err != nil {
			zap.L().Error("Error reading payment method", zap.String("name", seed.Name), zap.Error(err))
			failed = append(failed, seed.Name)
			continue
		}
		if current {
			unchanged++
			continue
		}

		if err := engine.AddPaymentMethod(ctx, call, seed.Name, seed.Verifier, seed.Currencies); err != nil {
			zap.L().Error("Error adding payment method", zap.String("name", seed.Name), zap.Error(err))
			failed = append(failed, seed.Name)
			continue
		}
		added++
	}

	if len(failed) > 0 {
		zap.L().Warn("Payment method seeding completed with some failures",
			zap.Int("added", added),
			zap.Int("unchanged", unchanged),
			zap.Strings("failed", failed))
	} else {
		zap.L().Info("Payment method seeding completed successfully",
			zap.Int("added", added),
			zap.Int("unchanged", unchanged))
	}
}

// issueToken prints a bearer token for account. A non-empty attach amount is
// given in display units and mints a payment token for that deposit.
func issueToken(cfg *models.Config, account, attach string, precision int32, ttl time.Duration) {
	auth, err := api.NewAuthenticator(cfg.Server.JwtSecret, cfg.Server.JwtIssuer)
	if err != nil {
		zap.L().Fatal("Failed to create authenticator", zap.Error(err))
	}

	var attached string
	if attach != "" {
		if attached, err = common.ParseAmount(attach, precision); err != nil {
			zap.L().Fatal("Invalid attached deposit", zap.Error(err))
		}
		zap.L().Info("Issuing payment token",
			zap.String("account", account),
			zap.String("attached_deposit", attached))
	}

	token, err := auth.IssuePaymentToken(account, attached, ttl)
	if err != nil {
		zap.L().Fatal("Failed to issue token", zap.Error(err))
	}
	fmt.Println(token)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Initialize the protocol configuration")
	oracleFlag := flag.String("oracle", "", "Oracle account to set after initialization (default: ORACLE_ACCOUNT)")
	methodsFlag := flag.String("payment-methods", "", "Payment methods file to seed (default: PAYMENT_METHODS_FILE)")
	tokenFlag := flag.String("token", "", "Print a bearer token for the given account and exit")
	tokenTtl := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of a token printed with -token")
	attachFlag := flag.String("attach", "", "Attached deposit for a -token payment token, in display units")
	attachPrecision := flag.Int("attach-precision", 24, "Decimals of the -attach amount")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	if *tokenFlag != "" {
		issueToken(cfg, *tokenFlag, *attachFlag, int32(*attachPrecision), *tokenTtl)
		return
	}

	owner := cfg.Protocol.Owner
	if owner == "" {
		zap.L().Fatal("PROTOCOL_OWNER must be set")
	}

	dbService, engine, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if *initFlag {
		if err := initializeProtocol(ctx, engine, owner, cfg.Protocol.FeeRecipient); err != nil {
			zap.L().Fatal("Failed to initialize protocol", zap.Error(err))
		}
	}

	oracle := *oracleFlag
	if oracle == "" {
		oracle = cfg.Listener.OracleAccount
	}
	if oracle != "" {
		if err := engine.SetOracleAccount(ctx, escrow.Call{Caller: owner}, oracle); err != nil {
			zap.L().Fatal("Failed to set oracle account", zap.Error(err))
		}
	}

	methodsFile := *methodsFlag
	if methodsFile == "" {
		methodsFile = cfg.Protocol.PaymentMethodsFile
	}
	seedPaymentMethods(ctx, engine, owner, methodsFile)

	zap.L().Info("Setup complete")
}
