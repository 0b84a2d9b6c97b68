package worker

import (
	"github.com/appshelf/appshelf/pkg/joblogs"
	"github.com/robinjoseph08/golib/logger"
)

// RunLogger is what the engines log through while a job runs.
type RunLogger interface {
	Info(msg string, data logger.Data)
	Warn(msg string, data logger.Data)
	Error(msg string, err error, data logger.Data)
	Fatal(msg string, err error, data logger.Data)
}

var _ RunLogger = (*joblogs.JobLogger)(nil)
