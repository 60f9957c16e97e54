package shops_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-garage-desk/internal/backendfake"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/shops"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	srv := backendfake.Start()
	defer srv.Close()
	repo := shops.NewRepository(transport.New(srv.ClientConfig(), session.NewStore()))
	ctx := context.Background()

	_, err := repo.CreateMany(ctx, []shops.Shop{
		{Name: "Quick Fit", Address: "1 High Street", City: "Leeds"},
		{Name: "Axle & Co", Address: "22 Mill Road", City: "Leeds"},
		{Name: "Harbour Motors", Address: "5 Quay Side", City: "Bristol", Phone: "0117 000"},
	})
	require.NoError(t, err)

	leeds, err := repo.ListByCity(ctx, "Leeds")
	require.NoError(t, err)
	require.Len(t, leeds, 2)
	require.Equal(t, "Axle & Co", leeds[0].Name)
	require.Equal(t, "Quick Fit", leeds[1].Name)

	found, err := repo.FindByName(ctx, "Harbour Motors")
	require.NoError(t, err)
	require.Equal(t, "0117 000", found.Phone)

	missing, err := repo.FindByName(ctx, "Nowhere")
	require.NoError(t, err)
	require.Nil(t, missing)

	t.Run("search spans name, address and city", func(t *testing.T) {
		for term, want := range map[string][]string{
			"quay":   {"Harbour Motors"},
			"leeds":  {"Quick Fit", "Axle & Co"},
			"motors": {"Harbour Motors"},
			"road":   {"Axle & Co"},
		} {
			results, err := repo.Search(ctx, term)
			require.NoError(t, err)
			names := make([]string, 0, len(results))
			for _, s := range results {
				names = append(names, s.Name)
			}
			assert.ElementsMatch(t, want, names, term)
		}
	})
}
