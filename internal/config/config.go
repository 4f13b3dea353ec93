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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"anypay-escrow-go/internal/models"
)

func Load() (*models.Config, error) {
	pollingInterval, err := getEnvDuration("LISTENER_POLLING_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	rotationBuffer, err := getEnvDuration("LISTENER_ROTATION_BUFFER", 10*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("INTENTS_API_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	retryDelay, err := getEnvDuration("SETTLEMENT_RETRY_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "escrow.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 8),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 4),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Server: models.ServerConfig{
			ListenAddress: getEnvString("SERVER_LISTEN_ADDRESS", ":8080"),
			JwtSecret:     os.Getenv("JWT_SECRET"),
			JwtIssuer:     getEnvString("JWT_ISSUER", "anypay-escrow"),
			ReadTimeout:   readTimeout,
			WriteTimeout:  writeTimeout,
			EnableMetrics: getEnvBool("SERVER_ENABLE_METRICS", true),

			TrustAttachedDeposit: getEnvBool("SERVER_TRUST_ATTACHED_DEPOSIT", false),
		},
		Listener: models.ListenerConfig{
			Enabled:           getEnvBool("LISTENER_ENABLED", false),
			OracleAccount:     os.Getenv("ORACLE_ACCOUNT"),
			PollingInterval:   pollingInterval,
			PageSize:          getEnvInt("LISTENER_PAGE_SIZE", 100),
			RotationBuffer:    rotationBuffer,
			IntentsApiBaseUrl: getEnvString("INTENTS_API_BASE_URL", "https://1click.chaindefuser.com"),
			IntentsApiKey:     os.Getenv("INTENTS_API_KEY"),
			RequestsPerSecond: getEnvFloat("INTENTS_API_RPS", 5),
			RequestTimeout:    requestTimeout,
			AssetsFile:        getEnvString("ASSETS_FILE", "assets.yaml"),
		},
		Settlement: models.SettlementConfig{
			QueueSize:   getEnvInt("SETTLEMENT_QUEUE_SIZE", 256),
			MaxAttempts: getEnvInt("SETTLEMENT_MAX_ATTEMPTS", 5),
			RetryDelay:  retryDelay,
		},
		Protocol: models.ProtocolDefaults{
			Owner:              os.Getenv("PROTOCOL_OWNER"),
			FeeRecipient:       os.Getenv("PROTOCOL_FEE_RECIPIENT"),
			PaymentMethodsFile: getEnvString("PAYMENT_METHODS_FILE", "payment_methods.yaml"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
