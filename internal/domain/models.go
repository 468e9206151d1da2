package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity names a table backed by a backend list endpoint
type Entity string

const (
	EntityLeads     Entity = "leads"
	EntityGroups    Entity = "groups"
	EntityTasks     Entity = "tasks"
	EntityHandovers Entity = "handovers"
)

// LeadStage is the pipeline tab of a lead or group
type LeadStage string

const (
	LeadStageInitial  LeadStage = "initial"
	LeadStageFollowUp LeadStage = "follow up"
	LeadStageWarm     LeadStage = "warm"
	LeadStageWon      LeadStage = "won"
	LeadStageDead     LeadStage = "dead"
)

// TaskStatus is the tab of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusOverdue    TaskStatus = "overdue"
)

// HandoverStatus is the tab of a handover
type HandoverStatus string

const (
	HandoverStatusPending  HandoverStatus = "pending"
	HandoverStatusApproved HandoverStatus = "approved"
	HandoverStatusRejected HandoverStatus = "rejected"
)

// Priority of a lead, group or task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Lead is a sales lead row as returned by the backend
type Lead struct {
	ID           string     `json:"_id"`
	Name         string     `json:"name"`
	CompanyName  string     `json:"companyName"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	State        string     `json:"State,omitempty"`
	Stage        LeadStage  `json:"stage"`
	Priority     Priority   `json:"priority,omitempty"`
	OwnerID      string     `json:"ownerId,omitempty"`
	OwnerName    string     `json:"ownerName,omitempty"`
	ClosingMonth string     `json:"ClosingMonth,omitempty"`
	Value        float64    `json:"value"`
	Handover     bool       `json:"handover"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Group is a group booking row
type Group struct {
	ID         string    `json:"_id"`
	GroupName  string    `json:"groupName"`
	LeaderName string    `json:"leaderName"`
	Phone      string    `json:"phone,omitempty"`
	State      string    `json:"State,omitempty"`
	Stage      LeadStage `json:"stage"`
	Priority   Priority  `json:"priority,omitempty"`
	OwnerName  string    `json:"ownerName,omitempty"`
	Members    int       `json:"members"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Task is a follow-up task row
type Task struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title"`
	LeadID    string     `json:"leadId,omitempty"`
	LeadName  string     `json:"leadName,omitempty"`
	Status    TaskStatus `json:"status"`
	Priority  Priority   `json:"priority,omitempty"`
	OwnerName string     `json:"ownerName,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Handover is a won lead handed over to delivery
type Handover struct {
	ID           string         `json:"_id"`
	LeadID       string         `json:"leadId"`
	LeadName     string         `json:"leadName"`
	State        string         `json:"State,omitempty"`
	ClosingMonth string         `json:"ClosingMonth,omitempty"`
	Status       HandoverStatus `json:"status"`
	OwnerName    string         `json:"ownerName,omitempty"`
	Value        float64        `json:"value"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SavedView is a named table location stored for a user
type SavedView struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   string    `gorm:"type:varchar(100);not null;index:idx_saved_views_owner_entity_name,unique;column:owner_id" json:"ownerId"`
	Entity    Entity    `gorm:"type:varchar(50);not null;index:idx_saved_views_owner_entity_name,unique" json:"entity"`
	Name      string    `gorm:"type:varchar(200);not null;index:idx_saved_views_owner_entity_name,unique" json:"name"`
	Query     string    `gorm:"type:text;not null;default:''" json:"query"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName pins the saved views table name
func (SavedView) TableName() string {
	return "saved_views"
}

// BeforeCreate assigns an id when none is set
func (v *SavedView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
