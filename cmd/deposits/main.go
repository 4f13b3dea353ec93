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

	"anypay-escrow-go/internal/common"
	"anypay-escrow-go/internal/config"
	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/models"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

type reportStats struct {
	deposits    int
	funded      int
	outstanding int
}

// displayer renders base-unit amounts with the precision of known assets
type displayer struct {
	assets map[string]common.AssetConfig
}

func (d displayer) amount(asset string, v *uint256.Int) string {
	raw := "0"
	if v != nil {
		raw = v.Dec()
	}
	cfg, ok := d.assets[asset]
	if !ok {
		return raw
	}
	return fmt.Sprintf("%s %s", common.FormatAmount(raw, cfg.Precision), cfg.Symbol)
}

func formatHash(hash string) string {
	if hash == "" {
		return "none"
	}
	if len(hash) > 12 {
		return hash[:12] + "..."
	}
	return hash
}

func printDepositHeader(d *models.Deposit, f *models.FundingMeta) {
	status := "direct"
	if f != nil {
		status = string(f.Status)
	}
	fmt.Printf("\n┌─ Deposit #%d (%s)\n", d.Id, status)
	fmt.Printf("│  Asset: %s\n", d.Token)
	if d.Delegate != "" {
		fmt.Printf("│  Delegate: %s\n", d.Delegate)
	}
	fmt.Printf("│  Payment methods: %s\n", strings.Join(d.PaymentMethods, ", "))
	common.PrintBoxSeparator(78)
}

func printDepositLines(d *models.Deposit, f *models.FundingMeta, show displayer) {
	lines := [][2]string{
		{"total", show.amount(d.Token, d.Total)},
		{"remaining", show.amount(d.Token, d.Remaining)},
		{"outstanding", show.amount(d.Token, d.Outstanding)},
		{"intent bounds", fmt.Sprintf("%s .. %s", show.amount(d.Token, d.MinIntentAmount), show.amount(d.Token, d.MaxIntentAmount))},
	}
	if f != nil {
		lines = append(lines,
			[2]string{"quote", fmt.Sprintf("%s (generation %d)", formatHash(f.QuoteId), f.QuoteGeneration)},
			[2]string{"origin tx", formatHash(f.OriginTxHash)})
		if f.FailureReason != "" {
			lines = append(lines, [2]string{"failure", f.FailureReason})
		}
	}

	for i, line := range lines {
		fmt.Printf("%s %-15s: %s\n", common.BoxPrefix(i == len(lines)-1), line[0], line[1])
	}
}

func reportAccount(ctx context.Context, engine *escrow.Engine, account string, show displayer) (reportStats, error) {
	stats := reportStats{}

	ids, err := engine.GetAccountDeposits(ctx, account)
	if err != nil {
		return stats, fmt.Errorf("failed to list deposits: %w", err)
	}

	for _, id := range ids {
		d, err := engine.GetDeposit(ctx, id)
		if err != nil {
			zap.L().Error("Failed to read deposit", zap.Uint64("deposit_id", id), zap.Error(err))
			continue
		}
		f, err := engine.GetDepositFunding(ctx, id)
		if err != nil && !errors.Is(err, escrow.ErrFundingNotFound) {
			zap.L().Error("Failed to read funding metadata", zap.Uint64("deposit_id", id), zap.Error(err))
			continue
		}

		stats.deposits++
		if f == nil || f.Status == models.FundingFunded {
			stats.funded++
		}
		if !d.Outstanding.IsZero() {
			stats.outstanding++
		}

		printDepositHeader(d, f)
		printDepositLines(d, f, show)
	}
	return stats, nil
}

func reportListings(ctx context.Context, engine *escrow.Engine, asset string, limit int, show displayer) (int, error) {
	listings, err := engine.GetOpenDepositsByAsset(ctx, asset, escrow.NewPage(0, limit))
	if err != nil {
		return 0, fmt.Errorf("failed to list open deposits: %w", err)
	}

	for i, l := range listings {
		last := i == len(listings)-1
		fmt.Printf("%s #%-6d %-20s remaining %s (min %s, max %s)\n",
			common.BoxPrefix(last),
			l.DepositId,
			l.Depositor,
			show.amount(asset, l.Remaining),
			show.amount(asset, l.MinIntentAmount),
			show.amount(asset, l.MaxIntentAmount))
		fmt.Printf("%s   via %s\n", common.BoxDetailPrefix(last), strings.Join(l.PaymentMethods, ", "))
	}
	return len(listings), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	accountFlag := flag.String("account", "", "Report the deposits of this account")
	assetFlag := flag.String("asset", "", "Report open listings for this asset id")
	limitFlag := flag.Int("limit", escrow.DefaultPageSize, "Maximum listings to show")
	assetsFile := flag.String("assets", "", "Asset display file (default: ASSETS_FILE)")
	flag.Parse()

	if *accountFlag == "" && *assetFlag == "" {
		logger.Fatal("Either -account or -asset is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	show := displayer{}
	file := *assetsFile
	if file == "" {
		file = cfg.Listener.AssetsFile
	}
	if assets, err := common.LoadAssetConfig(file); err != nil {
		logger.Warn("Asset display file not loaded, showing base units", zap.String("file", file), zap.Error(err))
	} else {
		show.assets = common.AssetIndex(assets)
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, engine, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if *accountFlag != "" {
		common.PrintHeader("DEPOSIT REPORT: "+*accountFlag, common.DefaultWidth)
		stats, err := reportAccount(ctx, engine, *accountFlag, show)
		if err != nil {
			logger.Fatal("Failed to build deposit report", zap.Error(err))
		}
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d deposits (%d funded, %d with outstanding intents)",
			stats.deposits, stats.funded, stats.outstanding), common.DefaultWidth)
	}

	if *assetFlag != "" {
		common.PrintHeader("OPEN LISTINGS: "+*assetFlag, common.DefaultWidth)
		count, err := reportListings(ctx, engine, *assetFlag, *limitFlag, show)
		if err != nil {
			logger.Fatal("Failed to build listings report", zap.Error(err))
		}
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d open listings", count), common.DefaultWidth)
	}

	logger.Info("Deposit query completed")
}
