// Package llm is a small chat-completion client. An Adapter sends a
// provider-neutral CompletionRequest through httpclient and a Dialect maps it
// to and from one provider's wire format.
//
// Dialects register themselves by name; importing llm/openai makes the
// "openai" dialect available to New:
//
//	import _ "github.com/kbukum/captiongen/llm/openai"
//
//	adapter, err := llm.New(llm.Config{APIKey: key, Model: model}, log)
//	text, err := llm.Complete(ctx, adapter, system, user)
package llm
