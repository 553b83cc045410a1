// Package messaging 基于 Redis Streams 的任务队列与阶段事件总线
package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// 消息类型
const (
	TypeStoryRun   = "story_run"
	TypeStageEvent = "stage_event"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	RunID     string            `json:"run_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, runID string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		RunID:     runID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据，空值忽略
func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// decodeMessage 解析 Stream 条目中的 data 字段
func decodeMessage(values map[string]any) (*Message, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry has no data field")
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// Stream 流定义
type Stream string

const (
	StreamStoryRun    Stream = "stream:story:run"
	StreamStoryEvents Stream = "stream:story:events"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupStoryWorker ConsumerGroup = "cg-story-worker"
)

// StoryRunMessage 故事生成任务
type StoryRunMessage struct {
	RunID         string  `json:"run_id"`
	Topic         string  `json:"topic"`
	Investment    float64 `json:"investment"`
	Rounds        int     `json:"rounds"`
	ChapterCount  int     `json:"chapter_count"`
	ChapterLength int     `json:"chapter_length"`
	Concurrency   int     `json:"concurrency"`
	RequestID     string  `json:"request_id,omitempty"`
	TraceID       string  `json:"trace_id,omitempty"`
}

// 阶段事件
const (
	EventStageStarted  = "stage_started"
	EventStageFinished = "stage_finished"
	EventStageFailed   = "stage_failed"
	EventChapterDone   = "chapter_done"
)

// StageEventMessage 流水线进度事件
type StageEventMessage struct {
	RunID        string    `json:"run_id"`
	Stage        string    `json:"stage"`
	Event        string    `json:"event"`
	Progress     int       `json:"progress"`
	ChapterIndex int       `json:"chapter_index,omitempty"`
	ChapterTotal int       `json:"chapter_total,omitempty"`
	Preview      string    `json:"preview,omitempty"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 第 retryCount 次重试前需要等待的时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
