// Package logger provides structured logging for the scraper built on zerolog.
//
// A package-level default logger is initialized at startup and can be
// reconfigured with Initialize. Components receive a Logger value and may
// derive child loggers with WithField/WithFields for contextual fields.
package logger
