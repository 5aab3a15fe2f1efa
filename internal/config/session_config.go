package config

import "time"

const (
	revalidateIntervalVar = "DEEPSIGHT_REVALIDATE_INTERVAL"
	requestTimeoutVar     = "DEEPSIGHT_REQUEST_TIMEOUT"
)

type Session struct {
	file *File
}

var _ SessionConfig = Session{}

func (Session) GetCSRFCookieName() string {
	return "csrftoken"
}

func (Session) GetCSRFHeaderName() string {
	return "X-CSRFToken"
}

// GetProbePath is requested without credentials to make the server set the CSRF cookie.
func (Session) GetProbePath() string {
	return "/health"
}

func (Session) GetLoginPath() string {
	return "/auth/login"
}

func (Session) GetLogoutPath() string {
	return "/auth/logout"
}

func (Session) GetRefreshPath() string {
	return "/auth/token/refresh"
}

func (Session) GetVerifyPath() string {
	return "/auth/token/verify"
}

func (s Session) GetRevalidateInterval() time.Duration {
	return pickDuration(revalidateIntervalVar, s.file.session().RevalidateInterval, 10*time.Minute)
}

func (s Session) GetRequestTimeout() time.Duration {
	return pickDuration(requestTimeoutVar, s.file.session().RequestTimeout, 30*time.Second)
}
