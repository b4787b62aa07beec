package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/types"
)

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

type fakePauser struct {
	paused       bool
	pauseCalls   int
	resumeCalls  int
}

func (p *fakePauser) Pause()       { p.pauseCalls++; p.paused = true }
func (p *fakePauser) Resume()      { p.resumeCalls++; p.paused = false }
func (p *fakePauser) Paused() bool { return p.paused }

type fakeCloser struct {
	closed []uuid.UUID
	err    error
}

func (c *fakeCloser) ForceClose(id uuid.UUID) error {
	c.closed = append(c.closed, id)
	return c.err
}

func testServer(t *testing.T) (*Server, *database.Database, *fakePauser, *fakeCloser) {
	t.Helper()
	db := testDB(t)
	pauser := &fakePauser{}
	closer := &fakeCloser{}
	return New(":0", db, pauser, nil, closer, ""), db, pauser, closer
}

func TestHandleWhalesReturnsActiveWhales(t *testing.T) {
	s, db, _, _ := testServer(t)
	_, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whales", nil)
	s.handleWhales(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var whales []database.Whale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &whales))
	require.Len(t, whales, 1)
	assert.Equal(t, "0xabc", whales[0].Address)
}

func TestHandlePauseAndResumeTogglePauser(t *testing.T) {
	s, _, pauser, _ := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/control/pause", nil)
	s.handlePause(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pauser.pauseCalls)
	assert.True(t, pauser.paused)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/control/resume", nil)
	s.handleResume(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pauser.resumeCalls)
	assert.False(t, pauser.paused)
}

func TestHandlePauseRejectsNonPost(t *testing.T) {
	s, _, pauser, _ := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/control/pause", nil)
	s.handlePause(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, pauser.pauseCalls)
}

func TestHandleClosePositionForcesCloseByID(t *testing.T) {
	s, db, _, closer := testServer(t)
	pos, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(10), decimal.NewFromFloat(0.5))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/control/positions/"+pos.ID.String()+"/close", nil)
	s.handleClosePosition(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, closer.closed, 1)
	assert.Equal(t, pos.ID, closer.closed[0])
}

func TestHandleClosePositionRejectsMalformedID(t *testing.T) {
	s, _, _, closer := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/control/positions/not-a-uuid/close", nil)
	s.handleClosePosition(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, closer.closed)
}

func TestProtectRequiresBearerTokenWhenConfigured(t *testing.T) {
	db := testDB(t)
	s := New(":0", db, &fakePauser{}, nil, nil, "secret-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whales", nil)
	s.protect(s.handleWhales).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whales", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	s.protect(s.handleWhales).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
