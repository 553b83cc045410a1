package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
			attribute.String("story.run_id", msg.RunID),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishStoryRun 投递生成任务
func (p *Producer) PublishStoryRun(ctx context.Context, job *StoryRunMessage) (string, error) {
	msg, err := NewMessage(job.RunID, TypeStoryRun, job.RunID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("request_id", job.RequestID)
	msg.SetMetadata("trace_id", job.TraceID)
	return p.Publish(ctx, StreamStoryRun, msg)
}

// PublishStageEvent 发布阶段进度事件
func (p *Producer) PublishStageEvent(ctx context.Context, ev *StageEventMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeStageEvent, ev.RunID, ev)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("stage", ev.Stage)
	msg.SetMetadata("progress", strconv.Itoa(ev.Progress))
	return p.Publish(ctx, StreamStoryEvents, msg)
}
