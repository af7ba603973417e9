// Package remote implements the HTTP client for the audio analysis backend.
//
// Errors are tagged with the services package sentinels so callers can
// distinguish jobs the backend no longer knows about from transient network
// or server failures that deserve another attempt.
package remote
