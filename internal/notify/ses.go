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
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends plain-text email through SES v2.
type SESNotifier struct {
	client   sesAPI
	from     string
	resolver *Resolver
}

func NewSESNotifier(client sesAPI, from string, resolver *Resolver) *SESNotifier {
	return &SESNotifier{client: client, from: from, resolver: resolver}
}

func (s *SESNotifier) Notify(ctx context.Context, msg Message) error {
	to := s.resolver.Resolve(msg.PrincipalID)
	if to == "" {
		return fmt.Errorf("no address for principal %q", msg.PrincipalID)
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject()), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body()), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send %s notification to %s: %w", msg.Outcome, to, err)
	}
	logctx.FromContext(ctx).Info("Notification sent",
		slog.String("outcome", string(msg.Outcome)),
		slog.String("to", to),
		slog.String("messageID", aws.ToString(out.MessageId)))
	return nil
}
