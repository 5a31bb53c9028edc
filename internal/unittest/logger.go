package unittest

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a zerolog.Logger that writes through t.Log at debug level, so output
// only shows for failing or verbose tests.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
