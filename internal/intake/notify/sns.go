package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher is satisfied by *aws.SNSClient.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// ChannelMessage is what the channel bridge consumes from the topic.
type ChannelMessage struct {
	Identity   string `json:"identity"`
	Kind       string `json:"kind"`
	Ref        string `json:"ref,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	MediaURL   string `json:"mediaUrl,omitempty"`
}

// SNSNotifier publishes side effects to the channel bridge topic. Template
// refs are resolved to provider template IDs through templates.
type SNSNotifier struct {
	pub       Publisher
	topicARN  string
	templates map[string]string
	log       logger.Logger
}

func NewSNSNotifier(pub Publisher, topicARN string, templates map[string]string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		pub:       pub,
		topicARN:  topicARN,
		templates: templates,
		log:       log.WithFields(map[string]interface{}{"component": "channel-notifier"}),
	}
}

func (n *SNSNotifier) Send(ctx context.Context, identity string, se flow.SideEffect) error {
	msg := ChannelMessage{
		Identity: identity,
		Kind:     string(se.Kind),
		Ref:      se.Ref,
	}
	if se.Kind == flow.SendDocument {
		msg.MediaURL = se.Ref
	} else if id, ok := n.templates[templateKey(se)]; ok {
		msg.TemplateID = id
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.NewNotificationSendFailedError(string(se.Kind), err)
	}

	out, err := n.pub.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(string(se.Kind))},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError(string(se.Kind), fmt.Errorf("publish: %w", err))
	}

	n.log.Debug("Side effect published", map[string]interface{}{
		"identity":  identity,
		"kind":      string(se.Kind),
		"ref":       se.Ref,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

// templateKey maps a side effect onto the intake.templates config key.
func templateKey(se flow.SideEffect) string {
	switch se.Kind {
	case flow.SendYesNoPrompt:
		return "yes_no"
	case flow.SendPaymentOptionsPrompt:
		return "payment_options"
	default:
		return se.Ref
	}
}
