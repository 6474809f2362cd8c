package analytics

import (
	"context"
	"errors"
	"strings"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
)

const overviewPath = "/admin/analytics/overview"

var ErrInvalidPeriod = errors.New("invalid analytics period")

type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
)

const DefaultPeriod = Period7d

func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DefaultPeriod, nil
	case Period24h, Period7d, Period30d, Period90d:
		return p, nil
	default:
		return "", ErrInvalidPeriod
	}
}

type Counter struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type Point struct {
	Date   string `json:"date"`
	Opened int64  `json:"opened"`
	Closed int64  `json:"closed"`
}

type Overview struct {
	Period                Period    `json:"period"`
	Organizations         int64     `json:"organizations"`
	ActiveOrganizations   int64     `json:"activeOrganizations"`
	Users                 int64     `json:"users"`
	OpenTickets           int64     `json:"openTickets"`
	MedianResolutionHours float64   `json:"medianResolutionHours"`
	TicketsByStatus       []Counter `json:"ticketsByStatus"`
	TicketsByPriority     []Counter `json:"ticketsByPriority"`
	Timeline              []Point   `json:"timeline"`
}

type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Overview(ctx context.Context, period Period) (Overview, error) {
	if period == "" {
		period = DefaultPeriod
	}
	if _, err := ParsePeriod(string(period)); err != nil {
		return Overview{}, err
	}

	query := apiclient.BuildQueryString(apiclient.Params{apiclient.P("period", string(period))})
	out, err := apiclient.Do[Overview](ctx, s.client, overviewPath+query, apiclient.Options{})
	if err != nil {
		return Overview{}, err
	}
	if out.Period == "" {
		out.Period = period
	}
	return out, nil
}
