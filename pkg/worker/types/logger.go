package types

// Logger is the logging capability every component in this module takes
// as a dependency instead of reaching for a global. Mirrors the method
// set the teacher's definition.DefaultLogger already implements, so any
// component written against the old mcast.types.Logger keeps working.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	ToggleDebug(value bool) bool
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
}
