package channel

import "os"

const (
	// ResponseStartMarker precedes every reply when markers are enabled.
	ResponseStartMarker = "<<REPOSCRIBE_RESPONSE>>"
	// ResponseEndMarker follows every reply when markers are enabled.
	ResponseEndMarker = "<<END_RESPONSE>>"
	// EnvCLIResponseMarkers turns markers on for scripted REPL sessions.
	EnvCLIResponseMarkers = "REPOSCRIBE_CLI_RESPONSE_MARKERS"
)

// MarkersFromEnv reports whether EnvCLIResponseMarkers is set to a true value.
func MarkersFromEnv() bool {
	switch os.Getenv(EnvCLIResponseMarkers) {
	case "1", "true", "TRUE", "yes":
		return true
	}
	return false
}
