package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unklstewy/opensky-overlay/internal/auth"
	"github.com/unklstewy/opensky-overlay/internal/db"
	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

var fixedNow = time.Unix(1700000010, 0)

// testSnapshot mirrors overlay.Snapshot without the header, whose icon is
// encoded as text.
type testSnapshot struct {
	Present bool            `json:"present"`
	ICAO24  string          `json:"icao24"`
	Fields  []overlay.Field `json:"fields"`
	Seconds int64           `json:"seconds_since_position"`
}

func (s testSnapshot) value(label string) string {
	for _, f := range s.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

type fakeHistory struct {
	rows  []db.StoredStateVector
	err   error
	limit int
}

func (f *fakeHistory) History(_ context.Context, _ string, limit int) ([]db.StoredStateVector, error) {
	f.limit = limit
	return f.rows, f.err
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func str(v string) *string   { return &v }

func stateVector(icao24, callsign string, timePosition int64) opensky.StateVector {
	return opensky.StateVector{
		ICAO24:        icao24,
		Callsign:      str(callsign),
		OriginCountry: "Switzerland",
		TimePosition:  i64(timePosition),
		LastContact:   i64(timePosition),
		Longitude:     f64(8.56),
		Latitude:      f64(47.46),
		BaroAltitude:  f64(3000),
		GeoAltitude:   f64(3100),
		Velocity:      f64(120),
		TrueTrack:     f64(90),
		VerticalRate:  f64(5),
		Squawk:        str("1000"),
	}
}

type fixture struct {
	store     *tracks.Store
	selection *tracks.Selection
	server    *Server
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	store := tracks.NewStore(tracks.Options{StaleAfter: time.Hour})
	selection := tracks.NewSelection(store)
	opts := Options{
		Store:        store,
		Selection:    selection,
		Location:     time.UTC,
		TickInterval: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewServer(opts)
	s.now = func() time.Time { return fixedNow }
	return &fixture{store: store, selection: selection, server: s}
}

func (f *fixture) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Health = func() map[string]interface{} { return map[string]interface{}{"polls": 3} }
	})
	f.store.Upsert(stateVector("abc123", "SWR1", 1700000000))

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["tracks"])
	assert.EqualValues(t, 3, body["polls"])
}

func TestListTracks(t *testing.T) {
	observer := coordinates.Geographic{Latitude: 47.0, Longitude: 8.0, Altitude: 400}
	f := newFixture(t, func(o *Options) { o.Observer = &observer })

	f.store.Upsert(stateVector("BBB222", "SWR2", 1700000000))
	f.store.Upsert(stateVector("aaa111", "DLH1", 1700000000))
	f.store.Add("ccc333")
	require.NoError(t, f.selection.Select("bbb222"))

	rec := f.do(t, http.MethodGet, "/api/v1/tracks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []trackSummary
	decode(t, rec, &list)
	require.Len(t, list, 3)

	assert.Equal(t, "aaa111", list[0].ICAO24)
	assert.Equal(t, "DLH1", list[0].Callsign)
	assert.False(t, list[0].Selected)
	require.NotNil(t, list[0].Look)
	assert.Greater(t, list[0].Look.RangeNM, 0.0)

	assert.Equal(t, "bbb222", list[1].ICAO24)
	assert.True(t, list[1].Selected)

	// Empty track sorts last and has no header
	assert.Equal(t, "ccc333", list[2].ICAO24)
	assert.Nil(t, list[2].Look)
}

func TestGetTrack(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Upsert(stateVector("abc123", "SWR1", 1700000000))

	rec := f.do(t, http.MethodGet, "/api/v1/tracks/ABC123", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var track opensky.Track
	decode(t, rec, &track)
	assert.Equal(t, "abc123", track.ICAO24)
	require.NotNil(t, track.StateVector)
	assert.Equal(t, "SWR1", *track.StateVector.Callsign)

	rec = f.do(t, http.MethodGet, "/api/v1/tracks/ffffff", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOverlay(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Upsert(stateVector("abc123", "SWR1", 1700000004))
	f.store.Add("def456")

	t.Run("with state vector", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/tracks/abc123/overlay", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap testSnapshot
		decode(t, rec, &snap)
		assert.True(t, snap.Present)
		assert.Equal(t, int64(6), snap.Seconds)
		assert.True(t, strings.HasSuffix(snap.value(overlay.LabelLastPosition), " [6s]"))
		assert.Equal(t, "1000", snap.value(overlay.LabelSquawk))
	})

	t.Run("waiting for first state vector", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/tracks/def456/overlay", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap testSnapshot
		decode(t, rec, &snap)
		assert.False(t, snap.Present)
		assert.Empty(t, snap.Fields)
	})

	t.Run("unknown", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/tracks/ffffff/overlay", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSelectionFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Upsert(stateVector("abc123", "SWR1", 1700000000))

	rec := f.do(t, http.MethodPost, "/api/v1/selection/ffffff", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/selection/ABC123", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", f.selection.ICAO24())

	var snap testSnapshot
	rec = f.do(t, http.MethodGet, "/api/v1/selection", "", "")
	decode(t, rec, &snap)
	assert.True(t, snap.Present)
	assert.Equal(t, "abc123", snap.ICAO24)

	// Releasing a different aircraft leaves the selection alone
	rec = f.do(t, http.MethodDelete, "/api/v1/selection/ffffff", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "abc123", f.selection.ICAO24())

	rec = f.do(t, http.MethodDelete, "/api/v1/selection/abc123", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.selection.ICAO24())

	rec = f.do(t, http.MethodGet, "/api/v1/selection", "", "")
	snap = testSnapshot{}
	decode(t, rec, &snap)
	assert.False(t, snap.Present)
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodGet, "/api/v1/tracks/abc123/history", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("limits", func(t *testing.T) {
		history := &fakeHistory{rows: []db.StoredStateVector{
			{StateVector: stateVector("abc123", "SWR1", 1700000000), ReceivedAt: fixedNow},
		}}
		f := newFixture(t, func(o *Options) { o.History = history })

		rec := f.do(t, http.MethodGet, "/api/v1/tracks/abc123/history", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultHistoryLimit, history.limit)

		var rows []db.StoredStateVector
		decode(t, rec, &rows)
		assert.Len(t, rows, 1)

		f.do(t, http.MethodGet, "/api/v1/tracks/abc123/history?limit=50000", "", "")
		assert.Equal(t, maxHistoryLimit, history.limit)

		rec = f.do(t, http.MethodGet, "/api/v1/tracks/abc123/history?limit=abc", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("query error", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.History = &fakeHistory{err: errors.New("boom")} })
		rec := f.do(t, http.MethodGet, "/api/v1/tracks/abc123/history", "", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	return auth.NewService(auth.Config{
		Username:     "admin",
		PasswordHash: string(hash),
		JWTSecret:    "test-secret",
		BCryptCost:   bcrypt.MinCost,
	})
}

func TestAuthentication(t *testing.T) {
	svc := newAuthService(t)
	f := newFixture(t, func(o *Options) { o.Auth = svc })
	f.store.Upsert(stateVector("abc123", "SWR1", 1700000000))

	rec := f.do(t, http.MethodGet, "/api/v1/tracks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"username":"admin","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login loginResponse
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)

	rec = f.do(t, http.MethodGet, "/api/v1/tracks", login.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/selection/abc123", login.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("viewer cannot select", func(t *testing.T) {
		viewer, err := svc.GenerateToken("guest", auth.RoleViewer)
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/api/v1/selection", viewer, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodDelete, "/api/v1/selection/abc123", viewer, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "abc123", f.selection.ICAO24())
	})

	t.Run("token in query", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/tracks?token="+login.Token, "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/tracks", "garbage", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginWithoutAuth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"username":"a","password":"b"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
