// Package pkglog provides the pluggable logging hook shared by the icsp and
// programmer packages. Callers that want diagnostics wire a concrete logger
// (such as a *logrus.Logger) in with Set; by default nothing is logged.
package pkglog

// Logger is the narrow interface the core packages log through. A
// *logrus.Logger and a *logrus.Entry both satisfy it.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
}

type nullLogger struct{}

func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}

var current Logger = nullLogger{}

// Set installs l as the logger used by the icsp and programmer packages.
// Passing nil restores the no-op default.
func Set(l Logger) {
	if l == nil {
		current = nullLogger{}
		return
	}
	current = l
}

// Get returns the currently installed logger.
func Get() Logger {
	return current
}
