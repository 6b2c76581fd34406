package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-gameportal/internal/database"
	"github.com/npezzotti/go-gameportal/internal/testutil"
	"github.com/npezzotti/go-gameportal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	got []types.Notification
}

func (r *recordingPublisher) PublishNotification(n types.Notification) {
	r.got = append(r.got, n)
}

func TestInbox_PushPrependsUnread(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox(testutil.TestLogger(t), database.NewMemoryStore())
	pub := &recordingPublisher{}
	inbox.SetPublisher(pub)

	first, err := inbox.Push(ctx, types.Notification{Type: TypeWelcome, Title: "Welcome", Read: true})
	require.NoError(t, err)
	second, err := inbox.Push(ctx, types.Notification{Type: TypeMessage, Title: "Message from ChatMaster"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.Id)
	assert.NotEqual(t, first.Id, second.Id)
	assert.False(t, first.Read, "expected pushed notifications to start unread")
	assert.False(t, first.Timestamp.IsZero(), "expected timestamp to be filled")

	list, err := inbox.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Id, list[0].Id, "expected newest first")
	assert.Equal(t, first.Id, list[1].Id)

	assert.Len(t, pub.got, 2, "expected every push to be published")

	n, err := inbox.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInbox_MarkRead(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox(testutil.TestLogger(t), database.NewMemoryStore())

	a, err := inbox.Push(ctx, types.Notification{Title: "a"})
	require.NoError(t, err)
	_, err = inbox.Push(ctx, types.Notification{Title: "b"})
	require.NoError(t, err)

	require.NoError(t, inbox.MarkRead(ctx, a.Id))
	n, _ := inbox.UnreadCount(ctx)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, inbox.MarkRead(ctx, "nope"), ErrNotificationNotFound)

	require.NoError(t, inbox.MarkRead(ctx, ""))
	n, _ = inbox.UnreadCount(ctx)
	assert.Equal(t, 0, n)
}

func TestInbox_StoreFailure(t *testing.T) {
	s := &database.MockDocumentStore{}
	defer s.AssertExpectations(t)
	s.On("Get", mock.Anything, database.KeyNotifications).Return(nil, errors.New("down")).Once()

	inbox := NewInbox(testutil.TestLogger(t), s)
	_, err := inbox.Push(context.Background(), types.Notification{Title: "x"})
	assert.Error(t, err)
}

func TestContactLog_Send(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tcases := []struct {
		name        string
		req         ContactRequest
		expectedErr error
	}{
		{
			name: "records message",
			req: ContactRequest{
				Name:    "nova",
				Email:   "nova@x.com",
				Subject: "Bug",
				Message: "The obby is broken",
			},
		},
		{
			name:        "missing subject",
			req:         ContactRequest{Name: "nova", Email: "nova@x.com", Message: "hi"},
			expectedErr: ErrContactFields,
		},
		{
			name:        "blank name",
			req:         ContactRequest{Name: "  ", Email: "nova@x.com", Subject: "s", Message: "hi"},
			expectedErr: ErrContactFields,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			cl := NewContactLog(testutil.TestLogger(t), database.NewMemoryStore(), "owner@example.com", "AKBlox")
			cl.now = func() time.Time { return now }

			msg, err := cl.Send(ctx, tc.req)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				list, _ := cl.List(ctx)
				assert.Empty(t, list, "expected nothing recorded")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "owner@example.com", msg.To)
			assert.Equal(t, "nova@x.com", msg.From)
			assert.Equal(t, "AKBlox Contact: Bug", msg.Subject)
			assert.Equal(t, "From: nova (nova@x.com)\n\nThe obby is broken", msg.Message)
			assert.Equal(t, now, msg.Timestamp)

			list, err := cl.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.ContactMessage{msg}, list)
		})
	}
}
