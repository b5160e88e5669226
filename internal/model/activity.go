package model

import "time"

const ActivityGoalAchieved = "goal_achieved"

// ActivityEvent 发送给动态/通知服务的事件
type ActivityEvent struct {
	Type       string         `json:"type"`
	UserID     uint           `json:"userId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}
