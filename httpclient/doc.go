// Package httpclient is the outbound HTTP client used for the speech and
// language model sidecars. It adds base URLs, default auth, typed errors and
// the resilience guards of a resilience.Policy around net/http.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.deepinfra.com/v1/openai",
//	    Auth:    httpclient.BearerAuth(key),
//	    Policy:  resilience.DefaultPolicy("llm"),
//	}, log)
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/chat/completions",
//	    Body:   payload,
//	})
package httpclient
