// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// LogNotifier only logs. It is used when no sender address is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, msg Message) error {
	logctx.FromContext(ctx).Info("Notification",
		slog.String("outcome", string(msg.Outcome)),
		slog.String("principalId", msg.PrincipalID),
		slog.String("objectKey", msg.ObjectKey),
		slog.String("text", msg.Text),
		slog.Any("data", msg.Data),
		slog.Any("notes", msg.Notes))
	return nil
}

// Recorder keeps every message it is given.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
