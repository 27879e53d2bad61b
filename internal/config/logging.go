package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == TransportHTTP {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
		logger.InfoContext(ctx, "Config: cors_origins", "value", s.CORSOrigins)
		if s.FrontendDir != "" {
			logger.InfoContext(ctx, "Config: frontend_dir", "value", s.FrontendDir)
		}
		if s.RateLimit > 0 {
			logger.InfoContext(ctx, "Config: rate_limit", "value", s.RateLimit)
		}
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: config_file", "value", s.ConfigFile)
	logger.InfoContext(ctx, "Config: index.name", "value", s.Index.Name)
	logger.InfoContext(ctx, "Config: index.data_dir", "value", s.Index.DataDir)
	logger.InfoContext(ctx, "Config: index.bulk_chunk_size", "value", s.Index.BulkChunkSize)
	logger.InfoContext(ctx, "Config: index.request_timeout", "value", s.Index.RequestTimeout)
	logger.InfoContext(ctx, "Config: search.max_limit", "value", s.Search.MaxLimit)
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.String("config_file", s.ConfigFile),
		slog.Group("index",
			slog.String("name", s.Index.Name),
			slog.String("data_dir", s.Index.DataDir),
		),
	)
}
