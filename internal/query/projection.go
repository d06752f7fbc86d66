// Package query builds the read-side views of relief requests: each request
// joined with its latest mission and its reports.
package query

import (
	"time"

	"github.com/reliefconnect/api/internal/model"
)

type MissionSummary struct {
	ID      string `json:"id"`
	DonorID string `json:"donorId"`
}

// RequestView is the fixed shape every listing and detail endpoint returns.
type RequestView struct {
	ID           string              `json:"id"`
	RequesterID  string              `json:"requesterId"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Address      string              `json:"address"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	ContactPhone *string             `json:"contactPhone"`
	UrgencyLevel model.UrgencyLevel  `json:"urgencyLevel"`
	Status       model.RequestStatus `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	Items        []model.RequestItem `json:"items,omitempty"`

	ProofImage  *string         `json:"proofImage"`
	Mission     *MissionSummary `json:"mission"`
	ReportCount int             `json:"reportCount"`
	ReporterIDs []string        `json:"reporterIds"`
}

// Project joins a request with its latest mission (nil when none) and the
// ids of everyone who reported it.
func Project(r model.ReliefRequest, m *model.ReliefMission, reporterIDs []string) RequestView {
	v := RequestView{
		ID:           r.ID,
		RequesterID:  r.RequesterID,
		Title:        r.Title,
		Description:  r.Description,
		Address:      r.Address,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		ContactPhone: r.ContactPhone,
		UrgencyLevel: r.UrgencyLevel,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		Items:        r.Items,
		ReporterIDs:  []string{},
	}
	if m != nil {
		v.Mission = &MissionSummary{ID: m.ID, DonorID: m.DonorID}
		v.ProofImage = m.ProofImage
	}
	if len(reporterIDs) > 0 {
		v.ReporterIDs = append(v.ReporterIDs, reporterIDs...)
	}
	v.ReportCount = len(v.ReporterIDs)
	return v
}
