package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ports "habitual/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Habits", 2024, "2024 Habits"},
		{" Habits ", 2025, "2025 Habits"},
		{"2023 Habits", 2024, "2023 Habits"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestNewClient_MissingConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := NewClient(context.Background(), Config{}); err == nil || err.Error() != "missing spreadsheet id" {
		t.Errorf("NewClient() error = %v, want missing spreadsheet id", err)
	}
	_, err := NewClient(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("NewClient() error = %v, want missing credentials", err)
	}
	_, err = NewClient(context.Background(), Config{SpreadsheetID: "sheet", ServiceAccountFile: "/non/existent.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("NewClient() error = %v, want read error", err)
	}
}

func TestClient_AppendEntry(t *testing.T) {
	var gotPath, gotInput string
	var gotBody gsheet.ValueRange

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInput = r.URL.Query().Get("valueInputOption")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"'2024 Habits'!A7:E7","updatedRows":1}}`))
	}))
	defer ts.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(ts.URL+"/"),
		goption.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c := newClientWithService(svc, "sheet-id", "")

	ref, err := c.AppendEntry(context.Background(), ports.EntryRow{
		Date:       "2024-03-15",
		HabitTitle: "Read",
		UserEmail:  "alice@example.com",
		Completed:  true,
		SyncedAt:   time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}
	if ref != "'2024 Habits'!A7:E7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/") || !strings.Contains(gotPath, "2024 Habits") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("path = %q", gotPath)
	}
	if gotInput != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", gotInput)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 5 {
		t.Fatalf("values = %v", gotBody.Values)
	}
	row := gotBody.Values[0]
	if row[0] != "2024-03-15" || row[1] != "Read" || row[2] != "alice@example.com" || row[3] != true || row[4] != "2024-03-15T09:00:00Z" {
		t.Errorf("row = %v", row)
	}
}

func TestClient_AppendEntryWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet"}
	if _, err := c.AppendEntry(context.Background(), ports.EntryRow{Date: "2024-03-15"}); err == nil {
		t.Error("expected error when service is nil")
	}
}
