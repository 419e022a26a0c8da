package config

import "errors"

var (
	ErrMissingListenPort       = errors.New("config: listen.port is required")
	ErrInvalidProtocol         = errors.New("config: protocol must be \"smq\" or \"mqtt\"")
	ErrInvalidTLSVerify        = errors.New("config: listen.tls.verify must be none, optional, or required")
	ErrMissingTLSCert          = errors.New("config: listen.tls.enabled requires listen.tls.cert and listen.tls.key")
	ErrInvalidSessionBackend   = errors.New("config: session.backend must be \"memory\" or \"pebble\"")
	ErrMissingSessionPebbleDir = errors.New("config: session.backend \"pebble\" requires session.pebble_dir")
	ErrInvalidRateLimit        = errors.New("config: rate_limit.enabled requires rate_limit.max_rate > 0")
)
