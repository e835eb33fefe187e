// Package nlog - this module's logger, provides buffering, timestamping,
// writing and flushing (see nlog.go).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import "time"

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

// Flush drains every severity's buffer to its output.
func Flush(...bool) {
	for _, l := range loggers {
		l.flush()
	}
}

// Since returns how long it has been since anything was logged.
func Since() time.Duration {
	a := loggers[sevInfo].since()
	b := loggers[sevErr].since()
	if a < b {
		return a
	}
	return b
}
