package logger

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"indexcheck-go/pkg/utils"
)

var (
	rawURLPattern   = regexp.MustCompile(`https?://[^\s"']+`)
	secretKVPattern = regexp.MustCompile(`(?i)(api_key|apikey|key|token|secret)([=:]\s*)[A-Za-z0-9_\-]+`)
	botTokenPattern = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_\-]+`)
)

// SecurityLogger logs with credentials and bot tokens masked out.
type SecurityLogger struct {
	*Logger
}

func NewSecurityLogger(base *Logger) *SecurityLogger {
	return &SecurityLogger{Logger: base}
}

// MaskCredential renders an API key as its first four characters plus a
// fingerprint, e.g. "abcd***#1f2e3d4c".
func MaskCredential(key string) string {
	if key == "" {
		return ""
	}
	prefix := key
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return fmt.Sprintf("%s***#%s", prefix, utils.Fingerprint(key))
}

// MaskURL keeps scheme, host and path and drops the query string, which is
// where providers put api_key.
func MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "url#" + utils.HashURL(rawURL)[:8]
	}
	path := botTokenPattern.ReplaceAllString(parsed.Path, "bot***")
	masked := parsed.Scheme + "://" + parsed.Host + path
	if parsed.RawQuery != "" {
		masked += "?***"
	}
	return masked
}

// MaskLogMessage removes secrets from free-form text such as error strings.
func MaskLogMessage(message string) string {
	masked := rawURLPattern.ReplaceAllStringFunc(message, MaskURL)
	masked = secretKVPattern.ReplaceAllString(masked, "${1}${2}***")
	masked = botTokenPattern.ReplaceAllString(masked, "bot***")
	return masked
}

// MaskSensitiveData masks values whose keys look like credentials or URLs.
func MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for key, value := range data {
		lowerKey := strings.ToLower(key)
		str, isString := value.(string)
		switch {
		case !isString:
			masked[key] = value
		case strings.Contains(lowerKey, "key") || strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "credential"):
			masked[key] = MaskCredential(str)
		case strings.Contains(lowerKey, "endpoint"):
			masked[key] = MaskURL(str)
		default:
			masked[key] = MaskLogMessage(str)
		}
	}
	return masked
}

func (sl *SecurityLogger) SafeInfo(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(MaskSensitiveData(fields)).Info(MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeWarn(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(MaskSensitiveData(fields)).Warn(MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeDebug(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(MaskSensitiveData(fields)).Debug(MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeError(msg string, err error, fields map[string]interface{}) {
	maskedFields := MaskSensitiveData(fields)
	if err != nil {
		maskedFields["error"] = MaskLogMessage(err.Error())
	}
	sl.Logger.WithFields(maskedFields).Error(MaskLogMessage(msg))
}

var (
	securityLoggerInstance *SecurityLogger
	securityLoggerOnce     sync.Once
)

// GetSecurityLogger returns a security logger over the global logger.
func GetSecurityLogger() *SecurityLogger {
	securityLoggerOnce.Do(func() {
		securityLoggerInstance = NewSecurityLogger(GetLogger())
	})
	return securityLoggerInstance
}
