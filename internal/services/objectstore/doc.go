// Package objectstore publishes finished renders. The local backend copies
// into a directory; the s3 backend uploads to any S3-compatible bucket.
package objectstore
