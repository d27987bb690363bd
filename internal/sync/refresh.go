package sync

import (
	"context"
	"time"

	"github.com/lythe-im/lythed/internal/api"
	"github.com/lythe-im/lythed/internal/bus"
	"github.com/lythe-im/lythed/internal/status"
	"github.com/lythe-im/lythed/internal/store"
	"go.uber.org/zap"
)

// Origin marks where refreshed data came from.
type Origin int

const (
	// OriginFresh: the remote fetch succeeded and the cache was replaced.
	OriginFresh Origin = iota
	// OriginCache: the remote fetch failed; data is the last local cache,
	// usable but not freshly verified.
	OriginCache
)

// FriendsResult is the tri-state outcome of a friends refresh: fresh data,
// stale cached data, or an error.
type FriendsResult struct {
	Friends []store.Friend
	Origin  Origin
	Err     error
}

// GroupsResult is the tri-state outcome of a groups refresh.
type GroupsResult struct {
	Groups []store.Group
	Origin Origin
	Err    error
}

// ProfileResult is the tri-state outcome of a profile fetch.
type ProfileResult struct {
	Profile *store.Friend
	Origin  Origin
	Err     error
}

// Refresher coordinates remote fetches with local cache replacement and
// stale fallback. Reads are local-first; refreshes are explicit and
// asynchronous, delivering their result on a channel.
type Refresher struct {
	db      *store.DB
	api     *api.Client
	tracker *status.Tracker
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewRefresher creates a refresher.
func NewRefresher(db *store.DB, client *api.Client, tracker *status.Tracker, b *bus.Bus, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{db: db, api: client, tracker: tracker, bus: b, logger: logger}
}

// LocalFriends returns the cached friends list for immediate display.
// Errors degrade to an empty list.
func (r *Refresher) LocalFriends() []store.Friend {
	friends, err := r.db.ListFriends()
	if err != nil {
		r.logger.Warn("local friends read failed", zap.Error(err))
		return nil
	}
	return friends
}

// RefreshFriends fetches the friends list remotely, replacing the local
// cache on success. It never blocks the caller; the result arrives on the
// returned channel. On remote failure a non-empty cache is served as stale
// data, an empty cache surfaces the original error.
func (r *Refresher) RefreshFriends(ctx context.Context) <-chan FriendsResult {
	out := make(chan FriendsResult, 1)
	_ = r.tracker.Transition(status.DomainFriends, status.Fetching)
	go func() {
		out <- r.refreshFriends(ctx)
	}()
	return out
}

func (r *Refresher) refreshFriends(ctx context.Context) FriendsResult {
	payload, err := r.api.Friends(ctx)
	if err == nil {
		friends := friendsFromAPI(payload)
		if serr := r.db.ReplaceFriends(friends); serr != nil {
			r.logger.Error("friends cache replace failed", zap.Error(serr))
			err = serr
		} else {
			_ = r.tracker.Transition(status.DomainFriends, status.Succeeded)
			r.bus.Publish(bus.Event{
				Kind:      bus.KindSyncFriendsReplaced,
				Timestamp: time.Now(),
				Payload:   len(friends),
			})
			return FriendsResult{Friends: friends, Origin: OriginFresh}
		}
	}

	r.logger.Warn("friends refresh failed, trying local cache", zap.Error(err))
	cached, cerr := r.db.ListFriends()
	if cerr == nil && len(cached) > 0 {
		_ = r.tracker.Transition(status.DomainFriends, status.FailedWithFallback)
		return FriendsResult{Friends: cached, Origin: OriginCache}
	}
	_ = r.tracker.Transition(status.DomainFriends, status.FailedHard)
	return FriendsResult{Err: err}
}

// RefreshGroups mirrors RefreshFriends for the groups cache.
func (r *Refresher) RefreshGroups(ctx context.Context) <-chan GroupsResult {
	out := make(chan GroupsResult, 1)
	_ = r.tracker.Transition(status.DomainGroups, status.Fetching)
	go func() {
		out <- r.refreshGroups(ctx)
	}()
	return out
}

func (r *Refresher) refreshGroups(ctx context.Context) GroupsResult {
	payload, err := r.api.Groups(ctx)
	if err == nil {
		groups := groupsFromAPI(payload)
		if serr := r.db.ReplaceGroups(groups); serr != nil {
			r.logger.Error("groups cache replace failed", zap.Error(serr))
			err = serr
		} else {
			_ = r.tracker.Transition(status.DomainGroups, status.Succeeded)
			r.bus.Publish(bus.Event{
				Kind:      bus.KindSyncGroupsReplaced,
				Timestamp: time.Now(),
				Payload:   len(groups),
			})
			return GroupsResult{Groups: groups, Origin: OriginFresh}
		}
	}

	r.logger.Warn("groups refresh failed, trying local cache", zap.Error(err))
	cached, cerr := r.db.ListGroups()
	if cerr == nil && len(cached) > 0 {
		_ = r.tracker.Transition(status.DomainGroups, status.FailedWithFallback)
		return GroupsResult{Groups: cached, Origin: OriginCache}
	}
	_ = r.tracker.Transition(status.DomainGroups, status.FailedHard)
	return GroupsResult{Err: err}
}

// FetchProfile fetches a friend's profile, falling back to the cached
// directory entry when the remote call fails.
func (r *Refresher) FetchProfile(ctx context.Context, uid string) <-chan ProfileResult {
	out := make(chan ProfileResult, 1)
	_ = r.tracker.Transition(status.DomainProfile, status.Fetching)
	go func() {
		out <- r.fetchProfile(ctx, uid)
	}()
	return out
}

func (r *Refresher) fetchProfile(ctx context.Context, uid string) ProfileResult {
	payload, err := r.api.FriendProfile(ctx, uid)
	if err == nil {
		f := friendFromAPI(*payload)
		if serr := r.db.UpsertUser(&store.User{
			UID:       f.FriendID,
			Username:  f.Username,
			Avatar:    f.Avatar,
			Signature: f.Signature,
		}); serr != nil {
			r.logger.Warn("profile cache write failed", zap.Error(serr))
		}
		_ = r.tracker.Transition(status.DomainProfile, status.Succeeded)
		return ProfileResult{Profile: &f, Origin: OriginFresh}
	}

	r.logger.Warn("profile fetch failed, trying local cache", zap.String("uid", uid), zap.Error(err))
	cached, cerr := r.db.GetFriend(uid)
	if cerr == nil && cached == nil {
		// Not in the directory; a previously fetched profile may still be
		// cached in the users table.
		if u, uerr := r.db.GetUser(uid); uerr == nil && u != nil {
			cached = &store.Friend{
				FriendID:  u.UID,
				Username:  u.Username,
				Avatar:    u.Avatar,
				Signature: u.Signature,
			}
		}
	}
	if cerr == nil && cached != nil {
		_ = r.tracker.Transition(status.DomainProfile, status.FailedWithFallback)
		return ProfileResult{Profile: cached, Origin: OriginCache}
	}
	_ = r.tracker.Transition(status.DomainProfile, status.FailedHard)
	return ProfileResult{Err: err}
}

// SendFriendRequest forwards a friend request to the server.
func (r *Refresher) SendFriendRequest(ctx context.Context, friendID string) error {
	return r.api.SendFriendRequest(ctx, friendID)
}

// JoinGroup joins a group remotely and records the membership locally.
func (r *Refresher) JoinGroup(ctx context.Context, groupID, uid string) error {
	if err := r.api.JoinGroup(ctx, groupID); err != nil {
		return err
	}
	return r.db.AddGroupMember(groupID, uid)
}

// LeaveGroup leaves a group remotely and removes the local membership.
func (r *Refresher) LeaveGroup(ctx context.Context, groupID, uid string) error {
	if err := r.api.LeaveGroup(ctx, groupID); err != nil {
		return err
	}
	return r.db.RemoveGroupMember(groupID, uid)
}

func friendFromAPI(f api.Friend) store.Friend {
	return store.Friend{
		FriendID:       f.FriendID,
		Username:       f.Username,
		Status:         f.Status,
		Signature:      f.Signature,
		Avatar:         f.Avatar,
		RelationStatus: f.RelationStatus,
		Remark:         f.Remark,
		CreateTime:     f.CreateTime,
		UpdateTime:     f.UpdateTime,
	}
}

func friendsFromAPI(payload []api.Friend) []store.Friend {
	friends := make([]store.Friend, 0, len(payload))
	for _, f := range payload {
		friends = append(friends, friendFromAPI(f))
	}
	return friends
}

func groupsFromAPI(payload []api.Group) []store.Group {
	groups := make([]store.Group, 0, len(payload))
	for _, g := range payload {
		groups = append(groups, store.Group{
			GroupID:   g.GroupID,
			GroupName: g.GroupName,
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		})
	}
	return groups
}
