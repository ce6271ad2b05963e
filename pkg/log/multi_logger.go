package log

// MultiLogger fans each event out to every underlying logger, typically an
// SlogAdapter for the console next to a FileLogger for the capture file.
// Nil entries are skipped, so an optional sink can be wired unconditionally.
type MultiLogger []Logger

// NewMultiLogger combines loggers into one fan-out logger.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	return MultiLogger(loggers)
}

// Log forwards the event to every non-nil logger in order.
func (m MultiLogger) Log(event Event) {
	for _, l := range m {
		if l != nil {
			l.Log(event)
		}
	}
}

var _ Logger = MultiLogger(nil)
