package service

import "errors"

// ErrClientClosed indicates the client has been closed.
var ErrClientClosed = errors.New("meridian: client is closed")

// ErrNotFound indicates a referenced entity does not exist. The API layer
// maps it to 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput indicates a request failed validation. Mapped to 400 and
// never retried.
var ErrInvalidInput = errors.New("invalid input")

// ErrAllProvidersFailed indicates every federated provider failed within
// the request deadline. Mapped to 422.
var ErrAllProvidersFailed = errors.New("all providers failed")

// ErrLLMNotConfigured indicates /api/ask was called without a completion
// endpoint configured. Mapped to 503.
var ErrLLMNotConfigured = errors.New("llm endpoint not configured")
