package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func monthRecord(id, conn string, start time.Time, energy float64) Record {
	return Record{
		ID:           id,
		ConnectionID: conn,
		Region:       "us-east-1",
		Provider:     ProviderAWS,
		ServiceName:  "AmazonEC2",
		PeriodStart:  start,
		PeriodEnd:    start.AddDate(0, 1, 0).Add(-time.Second),
		EnergyKWh:    f64(energy),
	}
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" aws ")
	require.NoError(t, err)
	assert.Equal(t, ProviderAWS, p)

	p, err = ParseProvider("Azure")
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, p)

	_, err = ParseProvider("oracle")
	assert.Error(t, err)
}

func TestRecord_Hours(t *testing.T) {
	start := month(2025, time.January)
	r := Record{PeriodStart: start, PeriodEnd: start.Add(48 * time.Hour)}
	assert.Equal(t, 48.0, r.Hours())

	r.UsageHours = f64(12)
	assert.Equal(t, 12.0, r.Hours())

	inverted := Record{PeriodStart: start, PeriodEnd: start.Add(-time.Hour)}
	assert.Equal(t, 0.0, inverted.Hours())
	assert.Error(t, inverted.Validate())
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: month(2025, time.January), End: month(2025, time.April).Add(-time.Second)}

	assert.True(t, w.Contains(monthRecord("a", "c1", month(2025, time.January), 1)))
	assert.True(t, w.Contains(monthRecord("b", "c1", month(2025, time.March), 1)))
	assert.False(t, w.Contains(monthRecord("c", "c1", month(2024, time.December), 1)))
	assert.False(t, w.Contains(monthRecord("d", "c1", month(2025, time.April), 1)))

	assert.True(t, w.Valid())
	assert.False(t, Window{Start: w.End, End: w.Start}.Valid())
}

func TestFilters_Matches(t *testing.T) {
	r := monthRecord("a", "c1", month(2025, time.January), 1)
	r.ServiceType = str("p4d.24xlarge")

	assert.True(t, Filters{}.Matches(r))
	assert.True(t, Filters{Regions: []string{"US-EAST-1"}}.Matches(r))
	assert.False(t, Filters{Regions: []string{"eu-west-1"}}.Matches(r))
	assert.True(t, Filters{ServiceTypes: []string{"p4d.24xlarge"}}.Matches(r))

	r.ServiceType = nil
	assert.False(t, Filters{ServiceTypes: []string{"p4d.24xlarge"}}.Matches(r))
}

func TestMemoryStore_QueryUsage(t *testing.T) {
	store := NewMemoryStore(
		monthRecord("a", "c1", month(2025, time.January), 10),
		monthRecord("b", "c2", month(2025, time.January), 20),
		monthRecord("c", "c3", month(2025, time.January), 30),
		monthRecord("d", "c1", month(2025, time.June), 40),
	)
	w := Window{Start: month(2025, time.January), End: month(2025, time.April)}

	got, err := store.QueryUsage(context.Background(), []string{"c1", "c2"}, w, Filters{})
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMemoryStore_QueryUsage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().QueryUsage(ctx, []string{"c1"}, Window{}, Filters{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonthlyTotals(t *testing.T) {
	w := Window{Start: month(2025, time.January), End: month(2025, time.March).AddDate(0, 1, -1)}
	records := []Record{
		monthRecord("a", "c1", month(2025, time.January), 10),
		monthRecord("b", "c1", month(2025, time.January), 5),
		monthRecord("c", "c1", month(2025, time.March), 7),
		{ID: "d", PeriodStart: month(2025, time.February)}, // no energy
	}

	got := MonthlyTotals(records, w, Energy)
	assert.Equal(t, []float64{15, 0, 7}, got)
	assert.Equal(t, 3, MonthCount(w))
	assert.Equal(t, 0, MonthCount(Window{Start: w.End, End: w.Start}))
}

func TestMonthIndex(t *testing.T) {
	assert.Equal(t, 0, MonthIndex(month(2025, time.January), month(2025, time.January).Add(time.Hour)))
	assert.Equal(t, 13, MonthIndex(month(2024, time.December), month(2026, time.January)))
}
