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

package mount

import "gvfs/internal/trace"

// Notification is a user-visible message about a mount outcome.
type Notification struct {
	Title   string
	Message string
}

// NotificationSink delivers notifications to the logged-in user. Delivery
// transport is external to this module.
type NotificationSink interface {
	SendNotification(tracer *trace.Tracer, sessionID int, notification Notification)
}

// TraceNotificationSink records notifications in the trace stream. Used
// when no platform delivery channel is attached.
type TraceNotificationSink struct{}

// SendNotification emits the notification as a trace event.
func (TraceNotificationSink) SendNotification(tracer *trace.Tracer, sessionID int, notification Notification) {
	tracer.RelatedInfo("[session %d] %s: %s", sessionID, notification.Title, notification.Message)
}
