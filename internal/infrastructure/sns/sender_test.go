package sns

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	return &sns.PublishOutput{}, args.Error(0)
}

func TestPublish_SetsTopicAndAttributes(t *testing.T) {
	m := &mockSNS{}
	var got *sns.PublishInput
	m.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*sns.PublishInput) }).
		Return(nil)

	p := newPublisher(m, "arn:aws:sns:us-east-1:000000000000:orders")
	err := p.Publish(context.Background(), "order.placed", map[string]any{"order_id": "o1"})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:orders", *got.TopicArn)
	assert.JSONEq(t, `{"order_id":"o1"}`, *got.Message)
	assert.Equal(t, "order.placed", *got.MessageAttributes["event_type"].StringValue)
}

func TestPublish_UnmarshalablePayload(t *testing.T) {
	p := newPublisher(&mockSNS{}, "arn")
	err := p.Publish(context.Background(), "x", make(chan int))
	assert.Error(t, err)
}
