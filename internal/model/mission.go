package model

import "time"

// ReliefMission is a donor's commitment to service one request.
type ReliefMission struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	RequestID   string     `gorm:"not null;size:36;index" json:"requestId"`
	DonorID     string     `gorm:"not null;size:64;index" json:"donorId"`
	StartedAt   time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	ProofImage  *string    `gorm:"type:text" json:"proofImage"`
}

func (ReliefMission) TableName() string {
	return "relief_missions"
}

func (m *ReliefMission) Completed() bool {
	return m.CompletedAt != nil
}
