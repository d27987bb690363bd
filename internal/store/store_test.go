package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(msgID, convID string, ts int64) *Message {
	return &Message{
		MsgID:            msgID,
		ConversationID:   convID,
		ConversationType: ConvPrivate,
		FromUID:          "u2",
		ToUID:            "u1",
		MsgType:          TypeText,
		Content:          "hello",
		Timestamp:        ts,
		Status:           StatusDelivered,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + indexes)", result.Version)
	}
}

func TestInsertMessageDuplicateIgnored(t *testing.T) {
	db := testDB(t)

	m := testMessage("m1", "c1", 1000)
	inserted, err := db.InsertMessage(m)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("first insert should report inserted=true")
	}

	dup := testMessage("m1", "c1", 2000)
	dup.Content = "changed"
	inserted, err = db.InsertMessage(dup)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("duplicate insert should report inserted=false")
	}

	got, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("message not found")
	}
	if got.Content != "hello" {
		t.Errorf("content = %q, want first write retained", got.Content)
	}
}

func TestAppendMessageCreatesConversation(t *testing.T) {
	db := testDB(t)

	m := testMessage("m1", "u2", 1000)
	inserted, err := db.AppendMessage(m, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("expected insert")
	}

	c, err := db.GetConversation("u2")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("conversation not created")
	}
	if c.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", c.UnreadCount)
	}
	if c.LastMessage != "hello" {
		t.Errorf("preview = %q, want hello", c.LastMessage)
	}
	if c.Name != "Useru2" {
		t.Errorf("name = %q, want placeholder Useru2", c.Name)
	}
}

func TestAppendMessageDuplicateSkipsLedger(t *testing.T) {
	db := testDB(t)

	m := testMessage("m1", "c1", 1000)
	if _, err := db.AppendMessage(m, 1); err != nil {
		t.Fatal(err)
	}

	inserted, err := db.AppendMessage(testMessage("m1", "c1", 2000), 1)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("duplicate AppendMessage should report inserted=false")
	}

	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 1 {
		t.Errorf("unread = %d after duplicate, want 1", c.UnreadCount)
	}
	n, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("message count = %d, want 1", n)
	}
}

func TestAppendMessageUnreadAccumulates(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"m1", "m2", "m3"} {
		m := testMessage(id, "c1", int64(1000+i))
		if _, err := db.AppendMessage(m, 1); err != nil {
			t.Fatal(err)
		}
	}
	// Self message: no unread increment, preview still updates.
	self := testMessage("m4", "c1", 2000)
	self.Self = true
	self.Read = true
	self.Content = "mine"
	if _, err := db.AppendMessage(self, 0); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 3 {
		t.Errorf("unread = %d, want 3", c.UnreadCount)
	}
	if c.LastMessage != "mine" {
		t.Errorf("preview = %q, want mine", c.LastMessage)
	}

	if err := db.MarkConversationRead("c1"); err != nil {
		t.Fatal(err)
	}
	c, _ = db.GetConversation("c1")
	if c.UnreadCount != 0 {
		t.Errorf("unread after mark read = %d, want 0", c.UnreadCount)
	}
	// Idempotent.
	if err := db.MarkConversationRead("c1"); err != nil {
		t.Fatal(err)
	}
}

func TestConversationNameResolution(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceFriends([]Friend{{FriendID: "u9", Username: "alice"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceGroups([]Group{{GroupID: "g1", GroupName: "chess club"}}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		msgID    string
		convID   string
		convType int
		want     string
	}{
		{"m1", "u9", ConvPrivate, "alice"},
		{"m2", "u404", ConvPrivate, "Useru404"},
		{"m3", "g1", ConvGroup, "chess club"},
		{"m4", "g404", ConvGroup, "Groupg404"},
		{"m5", "sys", ConvSystemNotice, SystemNoticeName},
		{"m6", "cs", ConvCustomerService, CustomerServiceName},
		{"m7", "x", 99, UnknownConvName},
	}
	for _, tc := range cases {
		m := testMessage(tc.msgID, tc.convID, 1000)
		m.ConversationType = tc.convType
		if _, err := db.AppendMessage(m, 0); err != nil {
			t.Fatal(err)
		}
		c, err := db.GetConversation(tc.convID)
		if err != nil {
			t.Fatal(err)
		}
		if c.Name != tc.want {
			t.Errorf("conv %s name = %q, want %q", tc.convID, c.Name, tc.want)
		}
	}
}

func TestFriendAndGroupNames(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceFriends([]Friend{{FriendID: "u1", Username: "alice"}}); err != nil {
		t.Fatal(err)
	}
	if name, _ := db.FriendName("u1"); name != "alice" {
		t.Errorf("friend name = %q, want alice", name)
	}
	if name, _ := db.FriendName("u404"); name != "Useru404" {
		t.Errorf("friend name = %q, want placeholder", name)
	}
	if name, _ := db.GroupName("g404"); name != "Groupg404" {
		t.Errorf("group name = %q, want placeholder", name)
	}
}

func TestListMessagesBeforePagination(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		m := testMessage("m"+string(rune('a'+i)), "c1", int64(1000+i*10))
		if _, err := db.AppendMessage(m, 0); err != nil {
			t.Fatal(err)
		}
	}

	page, err := db.ListMessagesBefore("c1", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d messages, want 2", len(page))
	}
	if page[0].Timestamp != 1040 || page[1].Timestamp != 1030 {
		t.Errorf("first page timestamps = %d,%d, want 1040,1030", page[0].Timestamp, page[1].Timestamp)
	}

	// Chain with the oldest timestamp of the previous page.
	page2, err := db.ListMessagesBefore("c1", page[len(page)-1].Timestamp, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 {
		t.Fatalf("got %d messages on second page, want 2", len(page2))
	}
	if page2[0].Timestamp != 1020 || page2[1].Timestamp != 1010 {
		t.Errorf("second page timestamps = %d,%d, want 1020,1010", page2[0].Timestamp, page2[1].Timestamp)
	}
}

func TestPendingMessagesOrderedOldestFirst(t *testing.T) {
	db := testDB(t)

	newer := testMessage("m1", "c1", 2000)
	newer.Status = StatusSending
	older := testMessage("m2", "c1", 1000)
	older.Status = StatusSending
	sent := testMessage("m3", "c1", 1500)
	sent.Status = StatusSent
	for _, m := range []*Message{newer, older, sent} {
		if _, err := db.AppendMessage(m, 0); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := db.PendingMessages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}
	if pending[0].MsgID != "m2" || pending[1].MsgID != "m1" {
		t.Errorf("order = %s,%s, want m2,m1", pending[0].MsgID, pending[1].MsgID)
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	db := testDB(t)

	m := testMessage("m1", "c1", 1000)
	m.Status = StatusSending
	if _, err := db.AppendMessage(m, 0); err != nil {
		t.Fatal(err)
	}

	m.Status = StatusFailed
	m.RetryCount = 3
	if err := db.UpdateMessage(m); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.RetryCount != 3 {
		t.Errorf("status = %d retry = %d, want %d and 3", got.Status, got.RetryCount, StatusFailed)
	}
}

func TestListConversationsOrderedByRecency(t *testing.T) {
	db := testDB(t)

	if _, err := db.AppendMessage(testMessage("m1", "old", 1000), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AppendMessage(testMessage("m2", "new", 2000), 0); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ConversationID != "new" {
		t.Errorf("first = %q, want new", convs[0].ConversationID)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	db := testDB(t)

	if _, err := db.AppendMessage(testMessage("m1", "c1", 1000), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AppendMessage(testMessage("m2", "c2", 1000), 1); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteConversation("c1"); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Error("conversation c1 still present")
	}
	if got, _ := db.GetMessage("m1"); got != nil {
		t.Error("message m1 still present after conversation delete")
	}
	if got, _ := db.GetMessage("m2"); got == nil {
		t.Error("message m2 of another conversation was deleted")
	}
}

func TestReplaceFriendsIsFullReplacement(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceFriends([]Friend{
		{FriendID: "u1", Username: "alice"},
		{FriendID: "u2", Username: "bob"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.ReplaceFriends([]Friend{{FriendID: "u3", Username: "carol"}}); err != nil {
		t.Fatal(err)
	}

	friends, err := db.ListFriends()
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 1 {
		t.Fatalf("got %d friends, want 1 (no merge)", len(friends))
	}
	if friends[0].FriendID != "u3" {
		t.Errorf("friend = %q, want u3", friends[0].FriendID)
	}
	if f, _ := db.GetFriend("u1"); f != nil {
		t.Error("stale friend u1 survived replacement")
	}
}

func TestGroupMembership(t *testing.T) {
	db := testDB(t)

	if err := db.AddGroupMember("g1", "u1"); err != nil {
		t.Fatal(err)
	}
	// Duplicate join is a no-op.
	if err := db.AddGroupMember("g1", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := db.AddGroupMember("g1", "u2"); err != nil {
		t.Fatal(err)
	}

	members, err := db.ListGroupMembers("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}

	if err := db.RemoveGroupMember("g1", "u1"); err != nil {
		t.Fatal(err)
	}
	members, _ = db.ListGroupMembers("g1")
	if len(members) != 1 || members[0].UserID != "u2" {
		t.Errorf("members after leave = %v, want only u2", members)
	}
}

func TestUpsertUserUpdatesProfile(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertUser(&User{UID: "u1", Username: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertUser(&User{UID: "u1", Username: "alice2", Signature: "hi"}); err != nil {
		t.Fatal(err)
	}

	u, err := db.GetUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil {
		t.Fatal("user not found")
	}
	if u.Username != "alice2" || u.Signature != "hi" {
		t.Errorf("profile = %+v, want updated fields", u)
	}

	missing, err := db.GetUser("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown uid")
	}
}
