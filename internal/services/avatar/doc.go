// Package avatar is the HTTP client for the avatar lip-sync rendering
// collaborator.
package avatar
