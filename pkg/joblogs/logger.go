package joblogs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const maxDataValueLen = 1024

// Sink receives a human readable copy of every line a JobLogger writes.
type Sink interface {
	AppendLog(message string)
}

// JobLogger wraps logging to stdout, the database and an optional sink.
type JobLogger struct {
	jobID   int
	service *Service
	log     logger.Logger
	sink    Sink
	ctx     context.Context
}

// NewJobLogger creates a new JobLogger for a specific job. sink may be nil.
func (svc *Service) NewJobLogger(ctx context.Context, jobID int, log logger.Logger, sink Sink) *JobLogger {
	return &JobLogger{
		jobID:   jobID,
		service: svc,
		log:     log.Data(logger.Data{"job_id": jobID}),
		sink:    sink,
		ctx:     ctx,
	}
}

// Info logs an info-level message.
func (l *JobLogger) Info(msg string, data logger.Data) {
	l.log.Info(msg, data)
	l.mirror(msg, data)
	l.persist(models.JobLogLevelInfo, msg, data, nil)
}

// Warn logs a warning-level message.
func (l *JobLogger) Warn(msg string, data logger.Data) {
	l.log.Warn(msg, data)
	l.mirror("Warning: "+msg, data)
	l.persist(models.JobLogLevelWarn, msg, data, nil)
}

// Error logs an error-level message with automatic stack trace.
func (l *JobLogger) Error(msg string, err error, data logger.Data) {
	l.log.Err(err).Error(msg, data)
	data = withError(data, err)
	l.mirror("Error: "+msg, data)
	stack := string(debug.Stack())
	l.persist(models.JobLogLevelError, msg, data, &stack)
}

// Fatal logs a fatal-level message with automatic stack trace (for panics).
func (l *JobLogger) Fatal(msg string, err error, data logger.Data) {
	data = withError(data, err)
	l.log.Error(msg, data)
	l.mirror("CRITICAL: "+msg, data)
	stack := string(debug.Stack())
	l.persist(models.JobLogLevelFatal, msg, data, &stack)
}

func withError(data logger.Data, err error) logger.Data {
	if err == nil {
		return data
	}
	out := logger.Data{}
	for k, v := range data {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

func (l *JobLogger) mirror(msg string, data logger.Data) {
	if l.sink == nil {
		return
	}
	l.sink.AppendLog(FormatLine(msg, data))
}

// FormatLine renders msg followed by data as sorted key=value pairs.
func FormatLine(msg string, data logger.Data) string {
	if len(data) == 0 {
		return msg
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, data[k])
	}
	return b.String()
}

func (l *JobLogger) persist(level, msg string, data logger.Data, stackTrace *string) {
	var dataStr *string
	if len(data) > 0 {
		truncatedData := make(logger.Data)
		for k, v := range data {
			s, ok := v.(string)
			if ok && len(s) > maxDataValueLen {
				truncatedData[k] = truncateMiddle(s, maxDataValueLen)
			} else {
				truncatedData[k] = v
			}
		}
		jsonBytes, err := json.Marshal(truncatedData)
		if err == nil {
			s := string(jsonBytes)
			dataStr = &s
		}
	}

	jobLog := &models.JobLog{
		JobID:      l.jobID,
		Level:      level,
		Message:    msg,
		Data:       dataStr,
		StackTrace: stackTrace,
	}

	if err := l.service.CreateJobLog(l.ctx, jobLog); err != nil {
		l.log.Err(err).Warn("failed to persist job log")
	}
}

func truncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	half := (maxLen - 5) / 2
	return s[:half] + " ... " + s[len(s)-half:]
}
