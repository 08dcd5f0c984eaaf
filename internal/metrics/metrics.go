package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/inkfable/storypress/internal/aws"
)

// Emitter publishes counters to CloudWatch. A nil Emitter is valid and drops
// everything, so callers never have to guard the calls.
type Emitter struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewEmitter returns an Emitter bound to a namespace.
func NewEmitter(client aws.CloudWatchAPI, namespace string) *Emitter {
	return &Emitter{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Count publishes a count-of-one datapoint. Metric failures are logged, never
// propagated: observability must not fail the work it observes.
func (e *Emitter) Count(ctx context.Context, name string, dimensions map[string]string) {
	if e == nil || e.client == nil {
		return
	}

	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, cwtypes.Dimension{Name: awsString(k), Value: awsString(v)})
	}
	now := e.nowFunc()
	value := 1.0

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &e.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Dimensions: dims,
				Timestamp:  &now,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	})
	if err != nil {
		log.Printf("[metrics] put %s: %v", name, err)
	}
}

func awsString(s string) *string { return &s }
