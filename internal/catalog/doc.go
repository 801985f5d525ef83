// Package catalog holds the static encoding table that maps codec and
// resolution tier onto encoder parameters.
package catalog
