package config

// Redis backs the login rate limiter. The client parameters come
// from environment variables; if the connection cannot be
// established at startup this returns nil and the limiter degrades
// to a pass-through.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client from the environment.
// Supported variables:
//
//	REDIS_HOST / REDIS_PORT – hostname and port
//	REDIS_ADDR              – host:port shorthand (takes precedence)
//	REDIS_PASSWORD          – optional password
//	REDIS_DB                – database number (default 0)
//	REDIS_TLS               – enable TLS when "true" or "1"
//	REDIS_TLS_SKIP_VERIFY   – disable certificate verification
//	                          (self-signed setups only)
//
// The returned client may be nil if no server is reachable.
func NewRedisClient() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	pwd := os.Getenv("REDIS_PASSWORD")
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  pwd,
		DB:        dbNum,
		TLSConfig: redisTLSConfig(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}

// redisTLSConfig builds the TLS settings from the environment.
// Certificate verification stays on unless REDIS_TLS_SKIP_VERIFY is
// set; skipping it silently would let a spoofed server read limiter
// keys built from usernames.
func redisTLSConfig() *tls.Config {
	v := os.Getenv("REDIS_TLS")
	if !strings.EqualFold(v, "true") && v != "1" {
		return nil
	}
	conf := &tls.Config{MinVersion: tls.VersionTLS12}
	if skip := os.Getenv("REDIS_TLS_SKIP_VERIFY"); strings.EqualFold(skip, "true") || skip == "1" {
		conf.InsecureSkipVerify = true
	}
	return conf
}
