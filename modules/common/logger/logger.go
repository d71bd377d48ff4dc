package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure - 프로세스 전역 logrus 로거 설정 (LOG_LEVEL, LOG_FORMAT)
func Configure(level, format string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetOutput(os.Stdout)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("⚠️  Unknown LOG_LEVEL %q, falling back to info", level)
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// WithModule - 모듈 태그가 붙은 로그 엔트리
func WithModule(module string) *logrus.Entry {
	return logrus.StandardLogger().WithField("module", module)
}
