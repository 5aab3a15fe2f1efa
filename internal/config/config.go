package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetAPIURL() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// SessionConfig names the endpoints and credentials the session client
// relies on. Paths are relative to GetAPIURL.
type SessionConfig interface {
	GetCSRFCookieName() string
	GetCSRFHeaderName() string
	GetProbePath() string
	GetLoginPath() string
	GetLogoutPath() string
	GetRefreshPath() string
	GetVerifyPath() string
	GetRevalidateInterval() time.Duration
	GetRequestTimeout() time.Duration
}

type StoreConfig interface {
	GetStoreKind() string
	GetStorePath() string
	GetStorePassphrase() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type mainConfig struct {
	EnvVars
	Session
	Store
}

// New returns a Config backed by environment variables only.
func New() Config {
	return NewWithFile(nil)
}

// NewWithFile returns a Config where environment variables win over the
// values in f, and f wins over the built in defaults.
func NewWithFile(f *File) Config {
	return mainConfig{
		EnvVars: EnvVars{file: f},
		Session: Session{file: f},
		Store:   Store{file: f},
	}
}
