// Copyright 2024 GVFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trace emits structured events with a level, a name, and a
// key/value metadata map, plus scoped activities with nested correlation.
package trace

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	logrus "github.com/sirupsen/logrus"
)

func init() {
	// Default logging to discard until explicitly enabled via Configure
	logrus.SetOutput(io.Discard)
}

// Metadata is the key/value payload attached to a traced event.
type Metadata map[string]interface{}

// Configure routes trace output to w at the given level.
// Level is one of: trace, debug, info, warn, off (case insensitive).
func Configure(level string, w io.Writer) {
	switch strings.ToLower(level) {
	case "", "off", "none":
		logrus.SetOutput(io.Discard)
		return
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.SetOutput(w)
}

// Tracer emits events for one component. Events carry the component name
// and, when emitted inside an activity, the activity's correlation id.
type Tracer struct {
	name       string
	activityID string
}

// New creates a tracer for the named component.
func New(name string) *Tracer {
	return &Tracer{name: name}
}

func (t *Tracer) fields(metadata Metadata) logrus.Fields {
	fields := logrus.Fields{"area": t.name}
	if t.activityID != "" {
		fields["activity_id"] = t.activityID
	}
	for k, v := range metadata {
		fields[k] = v
	}
	return fields
}

// Event emits a structured event at the given level.
func (t *Tracer) Event(level logrus.Level, event string, metadata Metadata) {
	logrus.WithFields(t.fields(metadata)).Log(level, event)
}

// RelatedInfo emits an informational event with printf formatting.
func (t *Tracer) RelatedInfo(format string, args ...interface{}) {
	logrus.WithFields(t.fields(nil)).Infof(format, args...)
}

// RelatedWarning emits a warning event with printf formatting.
func (t *Tracer) RelatedWarning(format string, args ...interface{}) {
	logrus.WithFields(t.fields(nil)).Warnf(format, args...)
}

// RelatedError emits an error event with printf formatting.
func (t *Tracer) RelatedError(format string, args ...interface{}) {
	logrus.WithFields(t.fields(nil)).Errorf(format, args...)
}

// Activity is a scoped trace span. Stop emits the end event with the
// activity's duration; events emitted through Tracer() in between carry
// the activity's correlation id.
type Activity struct {
	tracer  *Tracer
	name    string
	id      string
	started time.Time
	stopped bool
}

// StartActivity opens a named activity scope. The returned activity's
// Tracer carries the new correlation id; the parent tracer's id (if any)
// is recorded on the start event as parent_activity_id.
func (t *Tracer) StartActivity(name string, metadata Metadata) *Activity {
	a := &Activity{
		tracer:  &Tracer{name: t.name},
		name:    name,
		id:      uuid.NewString(),
		started: time.Now(),
	}
	a.tracer.activityID = a.id

	fields := a.tracer.fields(metadata)
	if t.activityID != "" {
		fields["parent_activity_id"] = t.activityID
	}
	logrus.WithFields(fields).Info(name + ".Start")
	return a
}

// Tracer returns a tracer scoped to this activity.
func (a *Activity) Tracer() *Tracer {
	return a.tracer
}

// Stop emits the activity end event. err, when non-nil, marks the
// activity failed. Stop is idempotent.
func (a *Activity) Stop(err error) {
	if a.stopped {
		return
	}
	a.stopped = true

	fields := a.tracer.fields(Metadata{
		"duration_ms": time.Since(a.started).Milliseconds(),
	})
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error(a.name + ".Stop")
		return
	}
	logrus.WithFields(fields).Info(a.name + ".Stop")
}
