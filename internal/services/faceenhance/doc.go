// Package faceenhance is the optional face restoration collaborator used by
// post-processing.
package faceenhance
