// Package logging builds the slog loggers used by the daemon and CLI.
//
// Console output is a compact human format that leads each line with the job
// and stage it concerns; the log file is always JSON. Context helpers tag log
// lines with job ids, stage names and scene indexes so pipeline code does not
// thread them by hand.
package logging
