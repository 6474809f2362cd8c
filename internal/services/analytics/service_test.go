package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
)

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    Period
		wantErr bool
	}{
		{raw: "", want: DefaultPeriod},
		{raw: " 30D ", want: Period30d},
		{raw: "24h", want: Period24h},
		{raw: "1y", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePeriod(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Fatalf("ParsePeriod(%q): expected ErrInvalidPeriod, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParsePeriod(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
	}
}

func TestOverviewRequestsPeriod(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/analytics/overview" || r.URL.RawQuery != "period=30d" {
			t.Errorf("unexpected request: %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"success":true,"result":{"organizations":12,"openTickets":4,"ticketsByStatus":[{"label":"open","count":4}]}}`))
	}))
	defer server.Close()

	svc := NewService(apiclient.New(apiclient.Config{
		AuthBaseURL:    server.URL,
		TicketsBaseURL: server.URL,
		LocalBaseURL:   server.URL,
		Timeout:        time.Second,
	}))

	overview, err := svc.Overview(context.Background(), Period30d)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Period != Period30d || overview.Organizations != 12 || len(overview.TicketsByStatus) != 1 {
		t.Fatalf("unexpected overview: %+v", overview)
	}

	if _, err := svc.Overview(context.Background(), Period("forever")); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}
