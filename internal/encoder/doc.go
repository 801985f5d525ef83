// Package encoder runs the external encoder as a monitored subprocess.
//
// Monitor.Start turns a Request into one or two encoder runs (two-pass tiers
// split progress evenly between passes), streams progress events parsed from
// the encoder output, and maps failures onto the services error markers.
// Every process runs in its own process group so cancellation and Shutdown
// take down the whole tree.
package encoder
