package model

import "time"

type ReliefRequest struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	RequesterID  string        `gorm:"not null;size:64;index" json:"requesterId"`
	Title        string        `gorm:"not null;size:255" json:"title"`
	Description  string        `gorm:"type:text;not null" json:"description"`
	Address      string        `gorm:"not null;size:512" json:"address"`
	Latitude     float64       `gorm:"not null;index:idx_relief_requests_lat_lng,priority:1" json:"latitude"`
	Longitude    float64       `gorm:"not null;index:idx_relief_requests_lat_lng,priority:2" json:"longitude"`
	ContactPhone *string       `gorm:"size:32" json:"contactPhone"`
	UrgencyLevel UrgencyLevel  `gorm:"not null" json:"urgencyLevel"`
	Status       RequestStatus `gorm:"not null;index" json:"status"`
	CreatedAt    time.Time     `gorm:"not null;index" json:"createdAt"`
	Items        []RequestItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (ReliefRequest) TableName() string {
	return "relief_requests"
}

type RequestItem struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	RequestID      string `gorm:"not null;size:36;index" json:"requestId"`
	ItemName       string `gorm:"not null;size:255" json:"itemName"`
	QuantityNeeded int    `gorm:"not null" json:"quantityNeeded"`
	Unit           string `gorm:"size:32" json:"unit"`
}

func (RequestItem) TableName() string {
	return "request_items"
}
