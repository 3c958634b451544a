// Package security builds the client-side TLS settings shared by the
// outbound connections: the whisper sidecar, the Vosk websocket and the
// language model endpoint.
//
//	recognizer:
//	  vosk:
//	    url: wss://vosk.internal:2700
//	    tls:
//	      ca_file: /etc/captiongen/ca.pem
//	      min_version: "1.3"
package security
