package pub

import (
	"context"
	"scootspot/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"
)

const eventTypeOccupancy = "occupancy_updated"

type snsPub struct{ cli *sns.Client }

func NewSNS(c *sns.Client) *snsPub { return &snsPub{cli: c} }

// PublishOccupancy sends the event as JSON. location_id and event_type are copied into message
// attributes so subscriptions can filter without parsing the body.
func (s *snsPub) PublishOccupancy(ctx context.Context, arn string, event types.OccupancyEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn: &arn,
		Message:  aws.String(string(b)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
			"event_type":   {DataType: aws.String("String"), StringValue: aws.String(eventTypeOccupancy)},
			"location_id":  {DataType: aws.String("String"), StringValue: aws.String(event.LocationID)},
		},
	})
	return err
}
