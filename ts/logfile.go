/*
NAME
  logfile.go

DESCRIPTION
  logfile.go provides a rotating-file logging.Logger for hosts that want
  file-backed diagnostics without building their own logging.New wiring.
  Grounded on cmd/rv/main.go's (and cmd/looper/main.go's, cmd/speaker/main.go's)
  lumberjack.Logger + logging.New construction, adapted from a long-running
  capture host's log file to a library-supplied helper any NewDemuxer caller
  can reach for.

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

import (
	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, matching the teacher's cmd/rv defaults.
const (
	DefaultLogMaxSizeMB = 500
	DefaultLogMaxBackup = 10
	DefaultLogMaxAgeDay = 28
)

// NewFileLogger returns a logging.Logger that writes rotating log files at
// path via gopkg.in/natefinch/lumberjack.v2, the same rotation library the
// teacher's cmd/rv, cmd/looper and cmd/speaker entry points use for their
// netsender log files. suppress controls whether repeated identical log
// lines are deduplicated, per logging.New.
func NewFileLogger(path string, suppress bool) logging.Logger {
	fileLog := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    DefaultLogMaxSizeMB,
		MaxBackups: DefaultLogMaxBackup,
		MaxAge:     DefaultLogMaxAgeDay,
	}
	return logging.New(logging.Info, fileLog, suppress)
}
