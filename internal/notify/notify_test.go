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
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

func TestResolver(t *testing.T) {
	r := NewResolver(map[string]string{"jane": "jane@example.org"}, "admin@example.org")
	assert.Equal(t, "jane@example.org", r.Resolve("AWS:AIDAEXAMPLE:jane"))
	assert.Equal(t, "jane@example.org", r.Resolve("jane"))
	assert.Equal(t, "bob@example.org", r.Resolve("AWS:AROAEXAMPLE:bob@example.org"))
	assert.Equal(t, "admin@example.org", r.Resolve("AWS:AIDAEXAMPLE:unknown"))
	assert.Equal(t, "admin@example.org", r.Resolve(""))
}

func TestFailureBody(t *testing.T) {
	msg := Message{
		Outcome:   OutcomeFailure,
		ObjectKey: "incoming/COLL-ITEM-file.wav",
		Text:      "file is empty",
		Data:      map[string]any{"size": 0, "extension": "wav"},
		Notes:     []string{"a", "b"},
	}
	assert.Equal(t, "Ingestion failed: COLL-ITEM-file.wav", msg.Subject())
	body := msg.Body()
	assert.Contains(t, body, "Error: file is empty")
	assert.Contains(t, body, "  extension: wav\n  size: 0\n")
	assert.Contains(t, body, "  1. a\n  2. b\n")
}

func TestSESNotifier(t *testing.T) {
	api := &mockSES{}
	n := NewSESNotifier(api, "ingest@example.org", NewResolver(map[string]string{"jane": "jane@example.org"}, ""))

	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return aws.ToString(in.FromEmailAddress) == "ingest@example.org" &&
			in.Destination.ToAddresses[0] == "jane@example.org" &&
			aws.ToString(in.Content.Simple.Subject.Data) == "Ingestion succeeded: COLL-ITEM-file.wav"
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil).Once()

	require.NoError(t, n.Notify(context.Background(), Message{
		Outcome:     OutcomeSuccess,
		PrincipalID: "AWS:AIDAEXAMPLE:jane",
		ObjectKey:   "incoming/COLL-ITEM-file.wav",
	}))
	api.AssertExpectations(t)

	err := n.Notify(context.Background(), Message{Outcome: OutcomeSuccess, PrincipalID: "AWS:X:nobody"})
	require.Error(t, err)
}
