// Package composition turns a composition plan into an encoder filter graph.
//
// Build is a pure structural transform: inputs are merged into the
// video_raw/audio_raw streams, effects are chained in order producing
// video_<i>, and the last stream is aliased to final_video/final_audio.
// Serialize is the only place that knows the textual filter-graph syntax.
package composition
