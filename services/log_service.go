package services

// LogHandler is the logging contract shared by all components. Implementations
// may mirror records into the store for later inspection.
type LogHandler interface {
	Debug(message string)
	Info(message string)
	Warn(message string)
	Error(message string, err error)
}
