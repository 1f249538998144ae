package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"os"
)

type Config struct {
	HTTPAddr      string
	DBDSN         string
	RedisAddr     string
	JWTIssuer     string
	JWTSecret     string
	JWTTTL        time.Duration
	InternalToken string
	AppEnv        string
	QuoteAPIURL   string
	QuoteTTL      time.Duration

	// Composite score weights; must sum to 1.
	WeightReturn float64
	WeightPnl    float64
	WeightStars  float64
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.RedisAddr = os.Getenv("REDIS_ADDR")
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		c.JWTTTL = 24 * time.Hour
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.AppEnv = strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if c.AppEnv == "" {
		c.AppEnv = "development"
	}
	if c.AppEnv != "development" && c.AppEnv != "production" {
		return c, errors.New("invalid APP_ENV: use development or production")
	}
	c.QuoteAPIURL = os.Getenv("QUOTE_API_URL")
	if c.QuoteAPIURL == "" {
		missing = append(missing, "QUOTE_API_URL")
	}
	quoteTTL := os.Getenv("QUOTE_TTL")
	if quoteTTL == "" {
		c.QuoteTTL = 5 * time.Second
	} else {
		d, err := time.ParseDuration(quoteTTL)
		if err != nil {
			return c, err
		}
		c.QuoteTTL = d
	}
	var err error
	c.WeightReturn, err = floatEnv("RANK_WEIGHT_RETURN", 0.5)
	if err != nil {
		return c, err
	}
	c.WeightPnl, err = floatEnv("RANK_WEIGHT_PNL", 0.2)
	if err != nil {
		return c, err
	}
	c.WeightStars, err = floatEnv("RANK_WEIGHT_STARS", 0.3)
	if err != nil {
		return c, err
	}
	sum := c.WeightReturn + c.WeightPnl + c.WeightStars
	if sum < 0.999 || sum > 1.001 {
		return c, errors.New("rank weights must sum to 1")
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}
