package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldSearch(t *testing.T) {
	require.Equal(t, "oxido de zinco", FoldSearch("  Óxido de Zinco "))
	require.Equal(t, "acido ascorbico", FoldSearch("Ácido Ascórbico"))
	require.True(t, MatchesSearch("vitamina", "Vitamina C", "Química Brasil"))
	require.True(t, MatchesSearch("quimica", "Vitamina C", "Química Brasil"))
	require.False(t, MatchesSearch("omega", "Vitamina C"))
	require.True(t, MatchesSearch("", "anything"))
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, SystemActor, ActorFromContext(ctx))
	require.Equal(t, SystemActor, ActorFromContext(ContextWithActor(ctx, "")))
	require.Equal(t, "farmaceutico", ActorFromContext(ContextWithActor(ctx, "farmaceutico")))
}

func TestListFiltersNormalize(t *testing.T) {
	f := ListFilters{PerPage: 1000, SortDir: "sideways"}.Normalize()
	require.Equal(t, 1, f.Page)
	require.Equal(t, MaxPerPage, f.PerPage)
	require.Equal(t, "asc", f.SortDir)
	require.Equal(t, 0, f.Offset())

	f = ListFilters{Page: 3, PerPage: 10}.Normalize()
	require.Equal(t, 20, f.Offset())
	require.Equal(t, Pagination{Page: 3, PerPage: 10, Total: 25, TotalPages: 3}, NewPagination(3, 10, 25))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got, page := Paginate(items, ListFilters{Page: 2, PerPage: 2})
	require.Equal(t, []int{3, 4}, got)
	require.Equal(t, 3, page.TotalPages)

	got, _ = Paginate(items, ListFilters{Page: 9, PerPage: 2})
	require.Empty(t, got)
}
