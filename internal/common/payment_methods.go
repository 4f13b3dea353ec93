package common

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// PaymentMethodSeed is one registry entry loaded from the payment methods file
type PaymentMethodSeed struct {
	Name       string   `yaml:"name"`
	Verifier   string   `yaml:"verifier"`
	Currencies []string `yaml:"currencies"`
}

type PaymentMethodsConfig struct {
	PaymentMethods []PaymentMethodSeed `yaml:"payment_methods"`
}

// LoadPaymentMethods reads registry seeds. Names are lower-cased to match the
// platform part of deposit payment methods; currency codes are upper-cased.
func LoadPaymentMethods(file string) ([]PaymentMethodSeed, error) {
	path, err := resolvePath(file)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", file, err)
	}

	var config PaymentMethodsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", file, err)
	}

	for i := range config.PaymentMethods {
		seed := &config.PaymentMethods[i]
		seed.Name = strings.ToLower(strings.TrimSpace(seed.Name))
		if seed.Name == "" {
			return nil, fmt.Errorf("payment method at index %d missing name", i)
		}
		if len(seed.Currencies) == 0 {
			return nil, fmt.Errorf("payment method %s has no currencies", seed.Name)
		}
		for j, c := range seed.Currencies {
			seed.Currencies[j] = strings.ToUpper(strings.TrimSpace(c))
		}
	}

	return config.PaymentMethods, nil
}
