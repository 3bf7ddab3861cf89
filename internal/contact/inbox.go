package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/editor"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// ReadNoticeTTL is the banner lifetime after a read toggle.
const ReadNoticeTTL = 2 * time.Second

// Inbox is the admin view of stored leads, newest first.
type Inbox struct {
	ed    *editor.Editor
	store store.Store
	t     *content.Type
}

// NewInbox creates an Inbox. sink may be nil.
func NewInbox(s store.Store, reg *content.Registry, sink editor.ChangeSink, log *zap.Logger) *Inbox {
	t := reg.MustGet(content.TypeFormSubmissions)
	return &Inbox{
		ed:    editor.New(t, s, sink, log.Named("inbox"), editor.WithNoticeTTL(ReadNoticeTTL)),
		store: s,
		t:     t,
	}
}

// List returns every submission, newest first.
func (b *Inbox) List(ctx context.Context) (editor.View, error) {
	return b.ed.List(ctx)
}

// MarkRead sets is_read on one submission.
func (b *Inbox) MarkRead(ctx context.Context, id string, read bool) (editor.View, error) {
	v, err := b.ed.Update(ctx, id, map[string]any{"is_read": read}, time.Time{})
	if err == nil && v.Notice != nil && v.Notice.Kind == editor.NoticeSuccess {
		v.Notice.Text = "Marked as unread"
		if read {
			v.Notice.Text = "Marked as read"
		}
	}
	return v, err
}

// Delete removes a submission once confirmed.
func (b *Inbox) Delete(ctx context.Context, id string, confirmed bool) (editor.View, error) {
	v, err := b.ed.Delete(ctx, id, confirmed)
	if v.Confirm != nil {
		v.Confirm.Prompt = "Are you sure you want to delete this submission?"
	}
	if err == nil && v.Notice != nil && v.Notice.Kind == editor.NoticeSuccess {
		v.Notice.Text = "Submission deleted"
	}
	return v, err
}

// UnreadCount counts submissions not yet marked read.
func (b *Inbox) UnreadCount(ctx context.Context) (int, error) {
	rows, err := b.store.Select(ctx, b.t, store.Query{Where: map[string]any{"is_read": false}})
	if err != nil {
		return 0, fmt.Errorf("contact: unread count: %w", err)
	}
	return len(rows), nil
}
