// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

// Setup applies level and format. Unknown levels fall back to info.
func Setup(level, format string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return base
}

// For returns an entry tagged with a component name.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
