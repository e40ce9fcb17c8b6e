package deployclient

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
const EnvPrefix = "DEPLOY"

// Configuration keys. Nested keys map to environment variables with dots
// replaced by underscores, e.g. retry.max_attempts is
// DEPLOY_RETRY_MAX_ATTEMPTS.
const (
	keyServerURL        = "server_url"
	keyAPIKey           = "api_key"
	keyAccessToken      = "access_token"
	keyRootPath         = "root_path"
	keyRootDocument     = "root_document"
	keyHTTPTimeout      = "http_timeout"
	keyRetryMaxAttempts = "retry.max_attempts"
	keyRetryWaitMin     = "retry.wait_min"
	keyRetryWaitMax     = "retry.wait_max"
	keyConcurrency      = "concurrency"
	keyRateLimit        = "rate_limit"
	keyRateBurst        = "rate_burst"
	keyDebug            = "debug"
	keyUserAgent        = "user_agent"
	keyLogLevel         = "log_level"
	keyCacheType        = "cache.type"
	keyCacheFilePath    = "cache.file.path"
	keyCacheNATSURL     = "cache.nats.url"
	keyCacheNATSBucket  = "cache.nats.bucket"
	keyCacheNATSKey     = "cache.nats.key"
	keyCacheNATSTTL     = "cache.nats.ttl"
)

var configKeys = []string{
	keyServerURL, keyAPIKey, keyAccessToken, keyRootPath, keyRootDocument,
	keyHTTPTimeout, keyRetryMaxAttempts, keyRetryWaitMin, keyRetryWaitMax,
	keyConcurrency, keyRateLimit, keyRateBurst, keyDebug, keyUserAgent,
	keyLogLevel, keyCacheType, keyCacheFilePath, keyCacheNATSURL,
	keyCacheNATSBucket, keyCacheNATSKey, keyCacheNATSTTL,
}

// LoadConfig builds a Config from an optional YAML file and DEPLOY_*
// environment variables; the environment wins. An empty path reads the
// environment only.
func LoadConfig(path string) (*deploy.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range configKeys {
		err := v.BindEnv(key)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return configFromViper(v)
}

func configFromViper(v *viper.Viper) (*deploy.Config, error) {
	config := &deploy.Config{
		ServerURL:        v.GetString(keyServerURL),
		APIKey:           v.GetString(keyAPIKey),
		AccessToken:      v.GetString(keyAccessToken),
		RootPath:         v.GetString(keyRootPath),
		HTTPTimeout:      v.GetDuration(keyHTTPTimeout),
		RetryMaxAttempts: v.GetInt(keyRetryMaxAttempts),
		RetryWaitMin:     v.GetDuration(keyRetryWaitMin),
		RetryWaitMax:     v.GetDuration(keyRetryWaitMax),
		Concurrency:      v.GetInt(keyConcurrency),
		RateLimit:        v.GetFloat64(keyRateLimit),
		RateBurst:        v.GetInt(keyRateBurst),
		Debug:            v.GetBool(keyDebug),
		UserAgent:        v.GetString(keyUserAgent),
	}

	if config.ServerURL == "" {
		return nil, deploy.ErrServerURLRequired
	}

	if level := v.GetString(keyLogLevel); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}

		logger := logrus.New()
		logger.SetLevel(parsed)
		config.Logger = deploy.NewLogrusLogger(logger)
	}

	if path := v.GetString(keyRootDocument); path != "" {
		doc, err := LoadRootDocumentFile(path)
		if err != nil {
			return nil, err
		}

		config.RootDocument = doc
	}

	store, err := storeFromViper(v)
	if err != nil {
		return nil, err
	}

	config.RootDocumentStore = store

	return config, nil
}

func storeFromViper(v *viper.Viper) (*deploy.StoreConfig, error) {
	storeType := deploy.StoreType(strings.ToLower(v.GetString(keyCacheType)))

	switch storeType {
	case "", deploy.StoreTypeNone:
		return nil, nil //nolint:nilnil // no store configured
	case deploy.StoreTypeFile:
		return &deploy.StoreConfig{
			Type: storeType,
			File: &deploy.FileStoreConfig{Path: v.GetString(keyCacheFilePath)},
		}, nil
	case deploy.StoreTypeNATS:
		return &deploy.StoreConfig{
			Type: storeType,
			NATS: &deploy.NATSKVConfig{
				URL:    v.GetString(keyCacheNATSURL),
				Bucket: v.GetString(keyCacheNATSBucket),
				Key:    v.GetString(keyCacheNATSKey),
				TTL:    v.GetDuration(keyCacheNATSTTL),
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: cache.type %q", deploy.ErrUnsupportedStoreType, storeType)
	}
}
