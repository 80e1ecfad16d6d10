// Package prediction exposes the fitted pipeline to the front-ends.
//
// A Service is built once per process from a trained pipeline and passed to
// every shell (terminal form, web form, JSON API, MQTT responder). It is
// read-only and safe for concurrent use. Textual form input is converted by
// ParseRequest; a parse failure wraps ErrInvalidInput.
package prediction
