package httpapi

// Config defines HTTP API settings.
type Config struct {
	Addr               string
	SessionCookie      string
	SessionTTLHours    int
	SessionFile        string
	BasePath           string
	InitialBufferLines int
}
