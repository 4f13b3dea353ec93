package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// AssetConfig describes one escrowed asset: the intents asset id and the
// number of decimals used to display base-unit amounts.
type AssetConfig struct {
	AssetId   string `yaml:"asset_id"`
	Symbol    string `yaml:"symbol"`
	Precision int32  `yaml:"precision"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

func resolvePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, file), nil
}

func LoadAssetConfig(assetsFile string) ([]AssetConfig, error) {
	assetsPath, err := resolvePath(assetsFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", assetsFile, err)
	}

	seen := make(map[string]bool)
	for i, asset := range config.Assets {
		if asset.AssetId == "" {
			return nil, fmt.Errorf("asset at index %d missing asset_id", i)
		}
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		if asset.Precision < 0 || asset.Precision > 36 {
			return nil, fmt.Errorf("asset %s has invalid precision %d", asset.AssetId, asset.Precision)
		}
		if seen[asset.AssetId] {
			return nil, fmt.Errorf("asset %s listed twice", asset.AssetId)
		}
		seen[asset.AssetId] = true
	}

	return config.Assets, nil
}

// LoadAssetIds returns the set of asset ids listed in assetsFile.
func LoadAssetIds(assetsFile string) (map[string]bool, error) {
	assets, err := LoadAssetConfig(assetsFile)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(assets))
	for _, asset := range assets {
		ids[asset.AssetId] = true
	}
	return ids, nil
}

// AssetIndex maps asset ids to their display configuration.
func AssetIndex(assets []AssetConfig) map[string]AssetConfig {
	index := make(map[string]AssetConfig, len(assets))
	for _, asset := range assets {
		index[asset.AssetId] = asset
	}
	return index
}
