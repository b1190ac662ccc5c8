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

	"github.com/onnwee/highlights/internal/apperr"
	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/embedder"
	"github.com/onnwee/highlights/internal/engagement"
	"github.com/onnwee/highlights/internal/interest"
	"github.com/onnwee/highlights/internal/ranking"
)

type fakeEmbedder struct {
	res        embedder.Result
	err        error
	gotCaller  auth.Caller
	gotPostID  string
	callsCount int
}

func (f *fakeEmbedder) EmbedPost(ctx context.Context, caller auth.Caller, postID string) (embedder.Result, error) {
	f.callsCount++
	f.gotCaller, f.gotPostID = caller, postID
	return f.res, f.err
}

type fakeAggregator struct {
	res       interest.Result
	err       error
	gotUserID string
}

func (f *fakeAggregator) Aggregate(ctx context.Context, caller auth.Caller, userID string) (interest.Result, error) {
	f.gotUserID = userID
	return f.res, f.err
}

type fakeRanker struct {
	ids    []string
	err    error
	gotReq ranking.FeedRequest
}

func (f *fakeRanker) RankFeed(ctx context.Context, caller auth.Caller, req ranking.FeedRequest) ([]string, error) {
	f.gotReq = req
	return f.ids, f.err
}

type fakeSearcher struct {
	ids      []string
	err      error
	gotQuery string
	gotLimit int
}

func (f *fakeSearcher) Search(ctx context.Context, caller auth.Caller, query string, limit int) ([]string, error) {
	f.gotQuery, f.gotLimit = query, limit
	return f.ids, f.err
}

type fakeDirty struct {
	marked []string
	err    error
}

func (f *fakeDirty) MarkDirty(ctx context.Context, userID string) error {
	f.marked = append(f.marked, userID)
	return f.err
}

type failingLog struct{}

func (failingLog) Append(ctx context.Context, e engagement.Event) error {
	return errors.New("connection refused")
}

func (failingLog) PositivePostIDs(ctx context.Context, userID string, since time.Time, limit int) ([]string, error) {
	return nil, nil
}

func newRequest(method, path, body string, caller auth.Caller) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller.Authenticated() {
		r = r.WithContext(auth.WithCaller(r.Context(), caller))
	}
	return r
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v, body: %s", err, rr.Body.String())
	}
	return out
}

var (
	alice   = auth.Caller{UserID: "alice", Role: auth.RoleUser}
	indexer = auth.Service("indexer")
)

func TestEmbedPost(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		res        embedder.Result
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "embedded", body: `{"post_id":" p1 "}`, wantStatus: http.StatusOK, wantBody: `{"ok":true}`},
		{name: "skipped", body: `{"post_id":"p1"}`, res: embedder.Result{Skipped: true}, wantStatus: http.StatusOK, wantBody: `{"ok":true,"skipped":true}`},
		{name: "forbidden", body: `{"post_id":"p1"}`, err: apperr.E(apperr.ErrForbidden, "op", nil), wantStatus: http.StatusForbidden},
		{name: "not found", body: `{"post_id":"p1"}`, err: apperr.E(apperr.ErrNotFound, "op", nil), wantStatus: http.StatusNotFound},
		{name: "provider down", body: `{"post_id":"p1"}`, err: apperr.E(apperr.ErrEmbeddingFailed, "op", nil), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEmbedder{res: tt.res, err: tt.err}
			h := NewEmbedHandlers(fake, discardLogger())

			rr := httptest.NewRecorder()
			h.EmbedPost(rr, newRequest(http.MethodPost, PathEmbedPost, tt.body, alice))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if fake.gotPostID != "p1" {
				t.Errorf("post id = %q, want p1", fake.gotPostID)
			}
			if fake.gotCaller != alice {
				t.Errorf("caller = %+v, want %+v", fake.gotCaller, alice)
			}
			if tt.wantBody != "" && strings.TrimSpace(rr.Body.String()) != tt.wantBody {
				t.Errorf("body = %s, want %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestEmbedPost_MethodNotAllowed(t *testing.T) {
	fake := &fakeEmbedder{}
	h := NewEmbedHandlers(fake, discardLogger())

	rr := httptest.NewRecorder()
	h.EmbedPost(rr, newRequest(http.MethodGet, PathEmbedPost, "", alice))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q, want POST", rr.Header().Get("Allow"))
	}
	if fake.callsCount != 0 {
		t.Error("embedder should not be called")
	}
}

func TestEmbedPost_NonJSONBodyTreatedAsEmpty(t *testing.T) {
	fake := &fakeEmbedder{err: apperr.Invalid("embedder.EmbedPost", "post_id is required")}
	h := NewEmbedHandlers(fake, discardLogger())

	rr := httptest.NewRecorder()
	h.EmbedPost(rr, newRequest(http.MethodPost, PathEmbedPost, "not json at all", alice))

	if fake.gotPostID != "" {
		t.Errorf("post id = %q, want empty", fake.gotPostID)
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAggregateInterest(t *testing.T) {
	tests := []struct {
		name       string
		res        interest.Result
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "written", res: interest.Result{Count: 4}, wantStatus: http.StatusOK, wantBody: `{"ok":true,"count":4}`},
		{name: "skipped", res: interest.Result{Skipped: true}, wantStatus: http.StatusOK, wantBody: `{"ok":true,"skipped":true}`},
		{name: "not privileged", err: apperr.E(apperr.ErrForbidden, "op", nil), wantStatus: http.StatusForbidden},
		{name: "store failure", err: apperr.E(apperr.ErrStoreFailed, "op", errors.New("timeout")), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAggregator{res: tt.res, err: tt.err}
			h := NewInterestHandlers(fake, discardLogger())

			rr := httptest.NewRecorder()
			h.AggregateInterest(rr, newRequest(http.MethodPost, PathAggregateInterest, `{"user_id":"bob"}`, indexer))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if fake.gotUserID != "bob" {
				t.Errorf("user id = %q, want bob", fake.gotUserID)
			}
			if tt.wantBody != "" && strings.TrimSpace(rr.Body.String()) != tt.wantBody {
				t.Errorf("body = %s, want %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestFeed(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		ids       []string
		wantReq   ranking.FeedRequest
		wantPosts int
	}{
		{name: "defaults", body: `{}`, ids: []string{"p1", "p2"}, wantReq: ranking.FeedRequest{}, wantPosts: 2},
		{name: "numeric string limit", body: `{"limit":"10","sport":" soccer ","hashtag":"#Goals"}`, ids: []string{"p1"}, wantReq: ranking.FeedRequest{Limit: 10, Sport: "soccer", Hashtag: "#Goals"}, wantPosts: 1},
		{name: "garbage limit is absent", body: `{"limit":"lots"}`, wantReq: ranking.FeedRequest{}, wantPosts: 0},
		{name: "non json body", body: `limit=10`, wantReq: ranking.FeedRequest{}, wantPosts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRanker{ids: tt.ids}
			h := NewFeedHandlers(fake, discardLogger())

			rr := httptest.NewRecorder()
			h.Feed(rr, newRequest(http.MethodPost, PathFeed, tt.body, alice))

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if fake.gotReq != tt.wantReq {
				t.Errorf("request = %+v, want %+v", fake.gotReq, tt.wantReq)
			}
			var resp PostsResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Posts == nil {
				t.Fatal("posts must be an array, got null")
			}
			if len(resp.Posts) != tt.wantPosts {
				t.Errorf("len(posts) = %d, want %d", len(resp.Posts), tt.wantPosts)
			}
		})
	}
}

func TestFeed_Unauthorized(t *testing.T) {
	fake := &fakeRanker{err: apperr.E(apperr.ErrUnauthorized, "ranking.Rank", nil)}
	h := NewFeedHandlers(fake, discardLogger())

	rr := httptest.NewRecorder()
	h.Feed(rr, newRequest(http.MethodPost, PathFeed, `{}`, auth.Caller{}))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["error"].(map[string]any)["code"] != ErrCodeAuthFailed {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestSearch(t *testing.T) {
	fake := &fakeSearcher{ids: []string{"p3", "p1"}}
	h := NewSearchHandlers(fake, discardLogger())

	rr := httptest.NewRecorder()
	h.Search(rr, newRequest(http.MethodPost, PathSearch, `{"q":"late winner","limit":"8"}`, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if fake.gotQuery != "late winner" || fake.gotLimit != 8 {
		t.Errorf("got query=%q limit=%d", fake.gotQuery, fake.gotLimit)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"posts":["p3","p1"]}` {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	h := NewSearchHandlers(&fakeSearcher{}, discardLogger())

	rr := httptest.NewRecorder()
	h.Search(rr, newRequest(http.MethodPost, PathSearch, `{"q":"   "}`, alice))

	if strings.TrimSpace(rr.Body.String()) != `{"posts":[]}` {
		t.Errorf("body = %s, want empty posts array", rr.Body.String())
	}
}

func TestTrackEvent(t *testing.T) {
	tests := []struct {
		name       string
		caller     auth.Caller
		body       string
		wantStatus int
		wantUser   string
		wantType   engagement.EventType
		wantDirty  []string
	}{
		{
			name:       "like marks dirty",
			caller:     alice,
			body:       `{"post_id":"p1","event_type":"like"}`,
			wantStatus: http.StatusOK,
			wantUser:   "alice",
			wantType:   engagement.EventLike,
			wantDirty:  []string{"alice"},
		},
		{
			name:       "view is not positive",
			caller:     alice,
			body:       `{"post_id":"p1","event_type":"view","value_num":"12.5","meta":{"source":"feed"}}`,
			wantStatus: http.StatusOK,
			wantUser:   "alice",
			wantType:   engagement.EventView,
		},
		{
			name:       "event type is case insensitive",
			caller:     alice,
			body:       `{"post_id":"p1","event_type":"COMPLETE"}`,
			wantStatus: http.StatusOK,
			wantUser:   "alice",
			wantType:   engagement.EventComplete,
			wantDirty:  []string{"alice"},
		},
		{
			name:       "service records on behalf of user",
			caller:     indexer,
			body:       `{"user_id":"bob","post_id":"p1","event_type":"like"}`,
			wantStatus: http.StatusOK,
			wantUser:   "bob",
			wantType:   engagement.EventLike,
			wantDirty:  []string{"bob"},
		},
		{
			name:       "user cannot record for another user",
			caller:     alice,
			body:       `{"user_id":"bob","post_id":"p1","event_type":"like"}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "anonymous",
			body:       `{"post_id":"p1","event_type":"like"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing post id",
			caller:     alice,
			body:       `{"event_type":"like"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			caller:     alice,
			body:       `{"post_id":"p1","event_type":"poke"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := engagement.NewInMemoryLog()
			dirty := &fakeDirty{}
			h := NewEventHandlers(log, dirty, discardLogger())

			rr := httptest.NewRecorder()
			h.TrackEvent(rr, newRequest(http.MethodPost, PathEvents, tt.body, tt.caller))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}

			events := log.Events()
			if tt.wantStatus != http.StatusOK {
				if len(events) != 0 {
					t.Errorf("expected no events appended, got %d", len(events))
				}
				if len(dirty.marked) != 0 {
					t.Errorf("expected no dirty marks, got %v", dirty.marked)
				}
				return
			}

			if strings.TrimSpace(rr.Body.String()) != `{"ok":true}` {
				t.Errorf("body = %s", rr.Body.String())
			}
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].UserID != tt.wantUser || events[0].Type != tt.wantType {
				t.Errorf("event = %+v, want user %s type %s", events[0], tt.wantUser, tt.wantType)
			}
			if strings.Join(dirty.marked, ",") != strings.Join(tt.wantDirty, ",") {
				t.Errorf("dirty = %v, want %v", dirty.marked, tt.wantDirty)
			}
		})
	}
}

func TestTrackEvent_ValueFields(t *testing.T) {
	log := engagement.NewInMemoryLog()
	h := NewEventHandlers(log, nil, discardLogger())

	rr := httptest.NewRecorder()
	h.TrackEvent(rr, newRequest(http.MethodPost, PathEvents,
		`{"post_id":"p1","event_type":"comment","value_num":3,"value_text":"what a goal","meta":{"lang":"en"}}`, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	e := log.Events()[0]
	if e.ValueNum == nil || *e.ValueNum != 3 {
		t.Errorf("ValueNum = %v, want 3", e.ValueNum)
	}
	if e.ValueText == nil || *e.ValueText != "what a goal" {
		t.Errorf("ValueText = %v, want 'what a goal'", e.ValueText)
	}
	if e.Meta["lang"] != "en" {
		t.Errorf("Meta = %v", e.Meta)
	}
}

func TestTrackEvent_DirtyFailureDoesNotFailRequest(t *testing.T) {
	dirty := &fakeDirty{err: errors.New("redis down")}
	h := NewEventHandlers(engagement.NewInMemoryLog(), dirty, discardLogger())

	rr := httptest.NewRecorder()
	h.TrackEvent(rr, newRequest(http.MethodPost, PathEvents, `{"post_id":"p1","event_type":"like"}`, alice))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestTrackEvent_StoreFailure(t *testing.T) {
	dirty := &fakeDirty{}
	h := NewEventHandlers(failingLog{}, dirty, discardLogger())

	rr := httptest.NewRecorder()
	h.TrackEvent(rr, newRequest(http.MethodPost, PathEvents, `{"post_id":"p1","event_type":"like"}`, alice))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if len(dirty.marked) != 0 {
		t.Error("user must not be marked dirty when the event was not stored")
	}
	body := decodeJSON(t, rr)
	if body["error"].(map[string]any)["code"] != ErrCodeStoreFailed {
		t.Errorf("unexpected body: %v", body)
	}
}
