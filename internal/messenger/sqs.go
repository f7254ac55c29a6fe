package messenger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"go.uber.org/zap"
)

type sqsMessenger struct {
	client  sqsiface.SQSAPI
	baseUrl string
}

// NewSqsMessenger sends each item to the queue named after it under baseUrl,
// the account's queue URL prefix.
func NewSqsMessenger(cfg config.AwsConfig, baseUrl string) (MessageService, error) {
	awsConfig := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.AccessKey != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, cfg.Token))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[SQS] Failed to create session")
		return nil, err
	}

	return NewSqsMessengerWithClient(sqs.New(sess), baseUrl), nil
}

func NewSqsMessengerWithClient(client sqsiface.SQSAPI, baseUrl string) MessageService {
	return sqsMessenger{client, strings.TrimSuffix(baseUrl, "/")}
}

func (m sqsMessenger) queueUrl(item Item) string {
	return fmt.Sprintf("%s/%s", m.baseUrl, item.queue())
}

func (m sqsMessenger) SendMessage(item Item, body []byte, _ bool) error {
	_, err := m.client.SendMessage(&sqs.SendMessageInput{
		QueueUrl:    aws.String(m.queueUrl(item)),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("queue", m.queueUrl(item))).Error("[SQS] Failed to send message")
		return err
	}

	zap.L().With(zap.String("queue", m.queueUrl(item))).Debug("[SQS] Published message")

	return nil
}

func (m sqsMessenger) ConsumeMessages(ctx context.Context, item Item, callback func(body []byte) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := m.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(m.queueUrl(item)),
			MaxNumberOfMessages: aws.Int64(10),
			WaitTimeSeconds:     aws.Int64(20),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().With(zap.Error(err)).Error("[SQS] Failed to receive messages")
			return err
		}

		for _, message := range output.Messages {
			if err := callback([]byte(aws.StringValue(message.Body))); err != nil {
				zap.L().With(zap.Error(err), zap.String("id", aws.StringValue(message.MessageId))).Error("[SQS] Failed to handle message")
				continue
			}
			if err := m.deleteMessage(item, message); err != nil {
				zap.L().With(zap.Error(err)).Error("[SQS] Failed to delete message")
			}
		}
	}
}

func (m sqsMessenger) deleteMessage(item Item, message *sqs.Message) error {
	_, err := m.client.DeleteMessage(&sqs.DeleteMessageInput{
		QueueUrl:      aws.String(m.queueUrl(item)),
		ReceiptHandle: message.ReceiptHandle,
	})
	return err
}

func (m sqsMessenger) GetQueueSize(item Item) (*int, error) {
	output, err := m.client.GetQueueAttributes(&sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(m.queueUrl(item)),
		AttributeNames: []*string{aws.String(sqs.QueueAttributeNameApproximateNumberOfMessages)},
	})
	if err != nil {
		return nil, err
	}

	size, err := strconv.Atoi(aws.StringValue(output.Attributes[sqs.QueueAttributeNameApproximateNumberOfMessages]))
	if err != nil {
		return nil, err
	}

	return &size, nil
}
