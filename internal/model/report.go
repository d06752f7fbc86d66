package model

import "time"

type Report struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	RequestID   string       `gorm:"not null;size:36;uniqueIndex:idx_reports_request_reporter,priority:1" json:"requestId"`
	ReporterID  string       `gorm:"not null;size:64;uniqueIndex:idx_reports_request_reporter,priority:2" json:"reporterId"`
	Reason      ReportReason `gorm:"not null;size:20" json:"reason"`
	Description *string      `gorm:"type:text" json:"description"`
	CreatedAt   time.Time    `gorm:"not null;index" json:"createdAt"`
}

func (Report) TableName() string {
	return "reports"
}

// ReportReason constants
type ReportReason string

const (
	ReasonSpam          ReportReason = "spam"
	ReasonFake          ReportReason = "fake"
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonFake, ReasonInappropriate, ReasonOther:
		return true
	}
	return false
}
