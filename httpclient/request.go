package httpclient

// Request describes an outbound HTTP request.
type Request struct {
	Method string
	// Path is joined to the client's BaseURL unless it is absolute.
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body may be a *MultipartBody, []byte, string, or a value to JSON-encode.
	Body any
	// Auth overrides the client's default auth.
	Auth *AuthConfig
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
