package collective

import "log/slog"

// Stats collects what one participant did during the payload phase of a
// call. Count and control frames are not counted.
type Stats struct {
	// Rounds is the number of payload rounds walked.
	Rounds        int
	Sent          int
	Received      int
	BytesSent     int64
	BytesReceived int64
}

type settings struct {
	logger *slog.Logger
	stats  *Stats
}

type Option func(*settings)

// WithLogger makes the call log every round at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStats makes the call fill stats. stats is reset at the start of the call.
func WithStats(stats *Stats) Option {
	return func(s *settings) {
		s.stats = stats
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats != nil {
		*s.stats = Stats{}
	}
	return s
}

func (s *settings) record(a Action, n int) {
	if s.stats == nil {
		return
	}
	switch a.Kind {
	case SendTo:
		s.stats.Sent++
		s.stats.BytesSent += int64(n)
	case ReceiveFrom:
		s.stats.Received++
		s.stats.BytesReceived += int64(n)
	}
}
