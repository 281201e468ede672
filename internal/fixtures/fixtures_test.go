package fixtures

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/Deepak-Sangle/greenratchet/internal/org"
	"github.com/Deepak-Sangle/greenratchet/internal/store"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var q1 = usage.Window{
	Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
}

func demoData(t *testing.T) *Data {
	t.Helper()
	ds, err := Demo()
	require.NoError(t, err)
	data, err := ds.Convert()
	require.NoError(t, err)
	return data
}

func TestDemo_Convert(t *testing.T) {
	data := demoData(t)

	require.Len(t, data.Organizations, 1)
	assert.Equal(t, 50, *data.Organizations[0].EmployeeCount)
	require.Len(t, data.Connections, 2)
	assert.True(t, data.Connections[0].Active, "active defaults to true")
	assert.False(t, data.Connections[1].Active)
	assert.Len(t, data.Usage, 4)
	assert.Equal(t, "p4d.24xlarge", *data.Usage[0].ServiceType)

	var mix grid.Mix
	for _, m := range data.Grid {
		if m.Family == grid.FamilyElectricityMix && m.Region == "eu-west-1" {
			mix = m.Mix
		}
	}
	assert.Equal(t, grid.Mix{grid.SourceHydro: 0.1, grid.SourceCoal: 0.6, grid.SourceNuclear: 0.3}, mix)
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "organisations: []"},
		{"unknown provider", "connections: [{id: c1, organization_id: o1, provider: OCI}]"},
		{"unknown family", "grid: [{region: r, provider: AWS, family: NOISE, timestamp: 2025-01-01T00:00:00Z}]"},
		{"unknown source", "grid: [{region: r, provider: AWS, family: ELECTRICITY_MIX, timestamp: 2025-01-01T00:00:00Z, mix: {fusion: 1}}]"},
		{"inverted period", `usage: [{connection_id: c1, region: r, provider: AWS,
  period_start: 2025-02-01T00:00:00Z, period_end: 2025-01-01T00:00:00Z}]`},
		{"organization without id", "organizations: [{name: nobody}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Decode(strings.NewReader(tt.doc))
			if err != nil {
				return
			}
			_, err = ds.Convert()
			assert.Error(t, err)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	ds, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	data, err := ds.Convert()
	require.NoError(t, err)
	assert.Empty(t, data.Usage)
}

func TestInMemory_Evaluate(t *testing.T) {
	mem := demoData(t).InMemory()
	ev := kpi.NewEvaluator(mem.Usage, mem.Grid, mem.Directory, zerolog.Nop(), kpi.Options{})

	res, err := ev.Evaluate(context.Background(), "org-demo",
		kpi.Definition{ID: "renewable", Kind: kpi.KindRenewableShare, Target: 30}, q1)
	require.NoError(t, err)
	assert.InDelta(t, 35.0, res.ActualValue, 1e-9, "legacy connection is inactive")
	assert.Equal(t, kpi.StatusPassed, res.Status)
}

func TestSeed_Store(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(store.DriverSQLite, "file:fixtures_seed?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, store.Migrate(db))

	repos := store.NewRepositories(db)
	data := demoData(t)

	n, err := data.Seed(ctx, repos)
	require.NoError(t, err)
	assert.Equal(t, Counts{Organizations: 1, Connections: 2, Usage: 4, Grid: len(data.Grid)}, n)

	_, err = data.Seed(ctx, repos)
	require.NoError(t, err, "seeding twice is harmless")

	conns, err := repos.Connections(ctx, "org-demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-demo-aws"}, org.ActiveConnectionIDs(conns))

	recs, err := repos.Usage.QueryUsage(ctx, []string{"conn-demo-aws", "conn-demo-legacy"}, q1, usage.Filters{})
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}
