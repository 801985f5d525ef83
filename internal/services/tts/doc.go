// Package tts is the HTTP client for the speech synthesis collaborator.
package tts
