package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkcast/inkcast-server/internal/search"
	"github.com/inkcast/inkcast-server/internal/service"
)

// fakeSearcher returns canned index hits.
type fakeSearcher struct {
	result *search.Result
	err    error
}

func (f *fakeSearcher) Search(_ context.Context, params search.Params) (*search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Query = params.Query
	return &res, nil
}

func TestSearch_PositionsHits(t *testing.T) {
	e, _, build := publishedEnv(t)
	ctx := context.Background()

	searcher := &fakeSearcher{result: &search.Result{
		Total: 2,
		Hits: []search.Hit{
			{ID: search.DocumentID(build.ID, 0), BookID: "book-1", ChapterID: "ch-1", BuildID: build.ID, ParagraphIndex: 0, Score: 1.2},
			{ID: search.DocumentID(build.ID, 2), BookID: "book-1", ChapterID: "ch-1", BuildID: build.ID, ParagraphIndex: 2, Score: 0.8},
		},
	}}
	svc := service.NewSearchService(e.store, searcher, testLogger())

	result, err := svc.Search(ctx, search.Params{Query: "lighthouse"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)

	// Paragraph 0 opens segment 0: first group, offset 0.
	assert.Equal(t, int64(0), result.Hits[0].PositionMs)
	assert.Equal(t, int64(0), result.Hits[0].OffsetMs)
	assert.NotEmpty(t, result.Hits[0].AudioURL)

	// Paragraph 2 opens segment 2: second group starts at 24s, offset 0.
	assert.Equal(t, int64(24000), result.Hits[1].PositionMs)
	assert.Equal(t, int64(0), result.Hits[1].OffsetMs)
	assert.Equal(t, "lighthouse", result.Query)
}

func TestSearch_DropsStaleHits(t *testing.T) {
	e, _, build := publishedEnv(t)
	ctx := context.Background()

	searcher := &fakeSearcher{result: &search.Result{
		Total: 2,
		Hits: []search.Hit{
			{ID: search.DocumentID(build.ID, 1), BuildID: build.ID, ParagraphIndex: 1},
			{ID: search.DocumentID("bld_gone", 0), BuildID: "bld_gone", ParagraphIndex: 0},
		},
	}}
	svc := service.NewSearchService(e.store, searcher, testLogger())

	result, err := svc.Search(ctx, search.Params{Query: "lamp"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1, "hit on a collected build is dropped")
	assert.Equal(t, build.ID, result.Hits[0].BuildID)
}

func TestSearch_NoSearcher(t *testing.T) {
	e := newEnv(t)
	svc := service.NewSearchService(e.store, nil, testLogger())

	_, err := svc.Search(context.Background(), search.Params{Query: "anything"})
	assert.Error(t, err)
}
