package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lythe-im/lythed/internal/api"
	"github.com/lythe-im/lythed/internal/bus"
	"github.com/lythe-im/lythed/internal/status"
	"github.com/lythe-im/lythed/internal/store"
)

// fakeServer serves canned envelope responses and can be flipped into a
// failure mode to exercise the stale-fallback paths.
type fakeServer struct {
	*httptest.Server
	failing atomic.Bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fs.failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var data any
		switch r.URL.Path {
		case "/api/friend/friends":
			data = []api.Friend{
				{FriendID: "u1", Username: "alice"},
				{FriendID: "u2", Username: "bob"},
			}
		case "/api/groups":
			data = []api.Group{{GroupID: "g1", GroupName: "chess club"}}
		default:
			if strings.HasPrefix(r.URL.Path, "/api/friend/profile/") {
				data = api.Friend{FriendID: "u1", Username: "alice", Signature: "hi"}
			} else {
				data = map[string]any{}
			}
		}
		raw, _ := json.Marshal(data)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":      0,
			"message":   "ok",
			"data":      json.RawMessage(raw),
			"timestamp": "2026-01-01T00:00:00Z",
		})
	}))
	t.Cleanup(fs.Close)
	return fs
}

func testRefresher(t *testing.T) (*Refresher, *store.DB, *status.Tracker, *fakeServer) {
	t.Helper()
	db := testDB(t)
	srv := newFakeServer(t)
	client := api.NewClient(srv.URL, srv.Client(), nil)
	tracker := status.NewTracker(bus.New())
	return NewRefresher(db, client, tracker, bus.New(), nil), db, tracker, srv
}

func TestRefreshFriendsFresh(t *testing.T) {
	r, db, tracker, _ := testRefresher(t)

	res := <-r.RefreshFriends(context.Background())
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Origin != OriginFresh {
		t.Errorf("origin = %v, want fresh", res.Origin)
	}
	if len(res.Friends) != 2 {
		t.Fatalf("got %d friends, want 2", len(res.Friends))
	}
	if tracker.Current(status.DomainFriends) != status.Succeeded {
		t.Errorf("state = %s, want SUCCEEDED", tracker.Current(status.DomainFriends))
	}

	// Cache was replaced.
	cached, err := db.ListFriends()
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 2 || cached[0].Username != "alice" {
		t.Errorf("cache = %+v", cached)
	}
}

func TestRefreshFriendsStaleFallback(t *testing.T) {
	r, db, tracker, srv := testRefresher(t)

	if err := db.ReplaceFriends([]store.Friend{{FriendID: "u7", Username: "old"}}); err != nil {
		t.Fatal(err)
	}
	srv.failing.Store(true)

	res := <-r.RefreshFriends(context.Background())
	if res.Err != nil {
		t.Fatalf("stale fallback should not surface the error, got %v", res.Err)
	}
	if res.Origin != OriginCache {
		t.Errorf("origin = %v, want cache", res.Origin)
	}
	if len(res.Friends) != 1 || res.Friends[0].Username != "old" {
		t.Errorf("friends = %+v, want cached entry", res.Friends)
	}
	if tracker.Current(status.DomainFriends) != status.FailedWithFallback {
		t.Errorf("state = %s, want FAILED_WITH_FALLBACK", tracker.Current(status.DomainFriends))
	}
}

func TestRefreshFriendsHardFailure(t *testing.T) {
	r, _, tracker, srv := testRefresher(t)
	srv.failing.Store(true)

	res := <-r.RefreshFriends(context.Background())
	if res.Err == nil {
		t.Fatal("empty cache plus remote failure must surface the error")
	}
	if len(res.Friends) != 0 {
		t.Errorf("friends = %+v, want none", res.Friends)
	}
	if tracker.Current(status.DomainFriends) != status.FailedHard {
		t.Errorf("state = %s, want FAILED_HARD", tracker.Current(status.DomainFriends))
	}

	// The next refresh recovers.
	srv.failing.Store(false)
	res = <-r.RefreshFriends(context.Background())
	if res.Err != nil || res.Origin != OriginFresh {
		t.Errorf("recovery result = %+v", res)
	}
}

func TestRefreshGroups(t *testing.T) {
	r, _, _, srv := testRefresher(t)

	res := <-r.RefreshGroups(context.Background())
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if len(res.Groups) != 1 || res.Groups[0].GroupName != "chess club" {
		t.Errorf("groups = %+v", res.Groups)
	}

	srv.failing.Store(true)
	res = <-r.RefreshGroups(context.Background())
	if res.Origin != OriginCache || len(res.Groups) != 1 {
		t.Errorf("fallback result = %+v", res)
	}
}

func TestFetchProfileFreshCachesUser(t *testing.T) {
	r, db, _, _ := testRefresher(t)

	res := <-r.FetchProfile(context.Background(), "u1")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Origin != OriginFresh || res.Profile.Username != "alice" {
		t.Errorf("result = %+v", res)
	}

	u, err := db.GetUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Username != "alice" || u.Signature != "hi" {
		t.Errorf("cached user = %+v", u)
	}
}

func TestFetchProfileFallsBackToDirectory(t *testing.T) {
	r, db, tracker, srv := testRefresher(t)

	if err := db.ReplaceFriends([]store.Friend{{FriendID: "u1", Username: "cached-alice"}}); err != nil {
		t.Fatal(err)
	}
	srv.failing.Store(true)

	res := <-r.FetchProfile(context.Background(), "u1")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Origin != OriginCache || res.Profile.Username != "cached-alice" {
		t.Errorf("result = %+v", res)
	}
	if tracker.Current(status.DomainProfile) != status.FailedWithFallback {
		t.Errorf("state = %s", tracker.Current(status.DomainProfile))
	}
}

func TestFetchProfileFallsBackToUserCache(t *testing.T) {
	r, db, _, srv := testRefresher(t)

	// Not in the friends directory, but profile was fetched before.
	if err := db.UpsertUser(&store.User{UID: "u9", Username: "stranger"}); err != nil {
		t.Fatal(err)
	}
	srv.failing.Store(true)

	res := <-r.FetchProfile(context.Background(), "u9")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Origin != OriginCache || res.Profile.Username != "stranger" {
		t.Errorf("result = %+v", res)
	}
}

func TestFetchProfileHardFailure(t *testing.T) {
	r, _, tracker, srv := testRefresher(t)
	srv.failing.Store(true)

	res := <-r.FetchProfile(context.Background(), "unknown")
	if res.Err == nil {
		t.Fatal("expected error with no cache at all")
	}
	if tracker.Current(status.DomainProfile) != status.FailedHard {
		t.Errorf("state = %s", tracker.Current(status.DomainProfile))
	}
}

func TestJoinAndLeaveGroupRecordMembership(t *testing.T) {
	r, db, _, _ := testRefresher(t)

	if err := r.JoinGroup(context.Background(), "g1", "u1"); err != nil {
		t.Fatal(err)
	}
	members, err := db.ListGroupMembers("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != "u1" {
		t.Errorf("members = %+v", members)
	}

	if err := r.LeaveGroup(context.Background(), "g1", "u1"); err != nil {
		t.Fatal(err)
	}
	members, _ = db.ListGroupMembers("g1")
	if len(members) != 0 {
		t.Errorf("members after leave = %+v", members)
	}
}

func TestJoinGroupRemoteFailureSkipsLocal(t *testing.T) {
	r, db, _, srv := testRefresher(t)
	srv.failing.Store(true)

	if err := r.JoinGroup(context.Background(), "g1", "u1"); err == nil {
		t.Fatal("expected error")
	}
	members, _ := db.ListGroupMembers("g1")
	if len(members) != 0 {
		t.Error("no local membership may be recorded when the server refused")
	}
}

func TestLocalFriends(t *testing.T) {
	r, db, _, _ := testRefresher(t)

	if got := r.LocalFriends(); len(got) != 0 {
		t.Errorf("empty cache should yield no friends, got %+v", got)
	}
	if err := db.ReplaceFriends([]store.Friend{{FriendID: "u1", Username: "alice"}}); err != nil {
		t.Fatal(err)
	}
	if got := r.LocalFriends(); len(got) != 1 {
		t.Errorf("friends = %+v", got)
	}
}
