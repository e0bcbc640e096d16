package legal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"openvote/dashboard/internal/apperr"
)

type fakeQualifier struct {
	qualifyFn func(ctx context.Context, reportID string) ([]Match, error)
	calls     int
}

func (f *fakeQualifier) Qualify(ctx context.Context, reportID string) ([]Match, error) {
	f.calls++
	return f.qualifyFn(ctx, reportID)
}

func TestQualifySortsByDescendingScore(t *testing.T) {
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		return []Match{
			{ArticleID: "art-1", SimilarityScore: 0.41},
			{ArticleID: "art-2", SimilarityScore: 0.87},
			{ArticleID: "art-3", SimilarityScore: 0.41},
			{ArticleID: "art-4", SimilarityScore: 1.3},
		}, nil
	}}
	a := NewAdapter(q, nil)

	res, err := a.Qualify(context.Background(), "r-1")
	require.NoError(t, err)
	require.False(t, res.NoMatches())

	var order []string
	for _, m := range res.Matches {
		order = append(order, m.ArticleID)
		require.Equal(t, "r-1", m.ReportID)
	}
	require.Equal(t, []string{"art-4", "art-2", "art-1", "art-3"}, order)
	require.Equal(t, 1.0, res.Matches[0].SimilarityScore)

	cur, ok := a.Current()
	require.True(t, ok)
	require.Equal(t, res, cur)
}

func TestQualifyEmptyIsNotAnError(t *testing.T) {
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		return nil, nil
	}}
	a := NewAdapter(q, nil)

	res, err := a.Qualify(context.Background(), "r-1")
	require.NoError(t, err)
	require.True(t, res.NoMatches())
	require.Equal(t, "r-1", res.ReportID)
}

func TestQualifyFailureIsQualificationError(t *testing.T) {
	cause := apperr.New(apperr.ErrTransientNetwork, "HTTP_502", "bad gateway")
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		return nil, cause
	}}
	a := NewAdapter(q, nil)

	_, err := a.Qualify(context.Background(), "r-1")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrQualification))
	require.True(t, errors.Is(err, apperr.ErrTransientNetwork))

	_, ok := a.Current()
	require.False(t, ok)
}

func TestQualifyKeepsAuthorizationExpiredVisible(t *testing.T) {
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		return nil, apperr.New(apperr.ErrAuthorizationExpired, "UNAUTHORIZED", "expired")
	}}
	_, err := NewAdapter(q, nil).Qualify(context.Background(), "r-1")
	require.True(t, apperr.IsAuthorizationExpired(err))
}

func TestQualifyDiscardsAfterSelectionChange(t *testing.T) {
	var a *Adapter
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		a.Select("r-2")
		return []Match{{ArticleID: "art-1", SimilarityScore: 0.9}}, nil
	}}
	a = NewAdapter(q, nil)

	_, err := a.Qualify(context.Background(), "r-1")
	require.ErrorIs(t, err, ErrSuperseded)
	_, ok := a.Current()
	require.False(t, ok)
	require.Equal(t, "r-2", a.Selected())
}

func TestQualifyFailureAfterSelectionChangeIsSuperseded(t *testing.T) {
	var a *Adapter
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		a.Close()
		return nil, apperr.New(apperr.ErrTransientNetwork, "HTTP_502", "bad gateway")
	}}
	a = NewAdapter(q, nil)

	_, err := a.Qualify(context.Background(), "r-1")
	require.ErrorIs(t, err, ErrSuperseded)
	require.NotErrorIs(t, err, apperr.ErrQualification)
}

func TestQualifyExpiredAfterSelectionChangeStaysVisible(t *testing.T) {
	var a *Adapter
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		a.Select("r-2")
		return nil, apperr.New(apperr.ErrAuthorizationExpired, "UNAUTHORIZED", "expired")
	}}
	a = NewAdapter(q, nil)

	_, err := a.Qualify(context.Background(), "r-1")
	require.True(t, apperr.IsAuthorizationExpired(err), "a refused credential must still force logout")
}

func TestSelectAndCloseClearResult(t *testing.T) {
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) {
		return []Match{{ArticleID: "art-1", SimilarityScore: 0.5}}, nil
	}}
	a := NewAdapter(q, nil)

	_, err := a.Qualify(context.Background(), "r-1")
	require.NoError(t, err)

	a.Select("r-1")
	_, ok := a.Current()
	require.True(t, ok, "reselecting the same report keeps its result")

	a.Select("r-2")
	_, ok = a.Current()
	require.False(t, ok)

	_, err = a.Qualify(context.Background(), "r-2")
	require.NoError(t, err)
	a.Close()
	_, ok = a.Current()
	require.False(t, ok)
	require.Empty(t, a.Selected())
}

func TestQualifyRequiresReport(t *testing.T) {
	q := &fakeQualifier{qualifyFn: func(context.Context, string) ([]Match, error) { return nil, nil }}
	_, err := NewAdapter(q, nil).Qualify(context.Background(), "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Zero(t, q.calls)
}
