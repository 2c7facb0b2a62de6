package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows   []TimelineRow
	offset int
	limit  int
}

func (s *stubRepo) Timeline(_ context.Context, _ TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.offset, s.limit = offset, limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{ActorID: int64(i + 1), Action: "login", Entity: "session_role", EntityID: "s", From: "employee", To: "manager"}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: makeRows(25)}
	svc := NewService(repo)

	first, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, first.Rows, defaultPageSize)
	require.Equal(t, PagingInfo{Page: 1, PageSize: defaultPageSize, HasNext: true, NextPage: 2}, first.Paging)
	require.Equal(t, defaultPageSize+1, repo.limit)

	second, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, second.Rows, 5)
	require.Equal(t, PagingInfo{Page: 2, PageSize: defaultPageSize, PrevPage: 1}, second.Paging)
	require.Equal(t, defaultPageSize, repo.offset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
	require.NotNil(t, result.Rows)
}

func TestTimelineWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
	_, err = NewService(nil).Export(context.Background(), TimelineFilters{})
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	out, err := WriteCSV([]TimelineRow{{At: at, ActorID: 3, Action: "assign", Entity: "user_role", EntityID: "9", From: "employee", To: "hr_admin"}})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		csvHeader,
		{"2026-05-04T03:02:01Z", "3", "assign", "user_role", "9", "employee", "hr_admin"},
	}, records)
}
