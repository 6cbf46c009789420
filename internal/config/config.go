// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the intake service.
type Config struct {
	// WhatsApp Cloud API
	VerifyToken   string
	AccessToken   string
	PhoneNumberID string
	APIVersion    string

	// Backends
	DatabaseURL string
	RedisURL    string

	// Servers
	WebhookPort int // Cloud API webhook endpoint
	Port        int // health check
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	WhatsApp struct {
		VerifyToken   string `yaml:"verify_token"`
		AccessToken   string `yaml:"access_token"`
		PhoneNumberID string `yaml:"phone_number_id"`
		APIVersion    string `yaml:"api_version"`
	} `yaml:"whatsapp"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. Environment variables win over YAML. A missing
// config file is not an error, everything can come from the environment.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	if data, err := os.ReadFile(configPath); err == nil {
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := &Config{
		VerifyToken:   firstNonEmpty(os.Getenv("VERIFY_TOKEN"), raw.WhatsApp.VerifyToken),
		AccessToken:   firstNonEmpty(os.Getenv("WHATSAPP_ACCESS_TOKEN"), raw.WhatsApp.AccessToken),
		PhoneNumberID: firstNonEmpty(os.Getenv("WHATSAPP_PHONE_NUMBER_ID"), raw.WhatsApp.PhoneNumberID),
		APIVersion:    firstNonEmpty(os.Getenv("WHATSAPP_API_VERSION"), raw.WhatsApp.APIVersion, "v18.0"),
		DatabaseURL:   firstNonEmpty(os.Getenv("DATABASE_URL"), raw.Database.URL, "postgres://localhost:5432/intake"),
		RedisURL:      firstNonEmpty(os.Getenv("REDIS_URL"), raw.Redis.URL, "redis://localhost:6379/0"),
		WebhookPort:   envOrDefaultInt("WEBHOOK_PORT", 8443),
		Port:          envOrDefaultInt("PORT", 8080),
	}

	if cfg.VerifyToken == "" {
		return nil, fmt.Errorf("VERIFY_TOKEN is required: Meta cannot verify the webhook without it")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
