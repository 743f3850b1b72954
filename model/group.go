package model

import "time"

// Strategy selects the Load Balancer (C3) algorithm a Group's members are
// picked with.
type Strategy string

const (
	StrategyRoundRobin Strategy = "RoundRobin"
	StrategyPriority   Strategy = "Priority"
	StrategyWeighted   Strategy = "Weighted"
)

// Group is a named bundle of upstreams sharing a load-balancing strategy.
type Group struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	MatchPath string    `json:"match_path" gorm:"type:varchar(255);index"`
	Strategy  Strategy  `json:"strategy" gorm:"type:varchar(32)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string { return "groups" }

// GroupMember is one (upstream, weight) pairing within a Group. Weight is
// only meaningful for StrategyWeighted; a weight of 0 excludes the member
// from the Weighted rotation entirely (§4.3).
type GroupMember struct {
	GroupID    string `json:"group_id" gorm:"primaryKey;type:varchar(64)"`
	UpstreamID string `json:"upstream_id" gorm:"primaryKey;type:varchar(64)"`
	Weight     int    `json:"weight" gorm:"default:1"`
}

func (GroupMember) TableName() string { return "group_members" }
