package application

import (
	"context"
	"errors"
	"testing"

	"github.com/wyfcoding/p2pescrow/internal/notification/domain"
	"github.com/wyfcoding/p2pescrow/internal/notification/infrastructure/sender"
)

type fakeNotificationRepo struct {
	saved map[string]*domain.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{saved: map[string]*domain.Notification{}}
}

func (r *fakeNotificationRepo) Save(_ context.Context, n *domain.Notification) error {
	r.saved[n.NotificationID] = n
	return nil
}

func (r *fakeNotificationRepo) Get(_ context.Context, id string) (*domain.Notification, error) {
	return r.saved[id], nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, onlyUnread bool, _, _ int) ([]*domain.Notification, int64, error) {
	var out []*domain.Notification
	for _, n := range r.saved {
		if n.UserID == userID && (!onlyUnread || !n.Read) {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, id string) error {
	n := r.saved[id]
	if n == nil || n.UserID != userID {
		return domain.ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (r *fakeNotificationRepo) only(t *testing.T) *domain.Notification {
	t.Helper()
	if len(r.saved) != 1 {
		t.Fatalf("saved notifications = %d, want 1", len(r.saved))
	}
	for _, n := range r.saved {
		return n
	}
	return nil
}

// failingSender 投递恒定失败，用于验证失败从不向调用方传播
type failingSender struct{}

func (failingSender) Send(_ context.Context, _ *domain.Notification) error {
	return errors.New("broker unreachable")
}

func TestNotifyDeliversAndPersists(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, sender.NewMockSender(), nil)

	svc.Notify(context.Background(), "user-1", "trade_created", "新交易创建", "交易 TRD-1 已创建",
		map[string]string{"trade_id": "TRD-1"})

	n := repo.only(t)
	if n.Status != domain.NotificationStatusSent {
		t.Fatalf("status = %s, want SENT", n.Status)
	}
	if n.SentAt == nil {
		t.Fatal("sentAt not set")
	}
	if n.Metadata["trade_id"] != "TRD-1" {
		t.Fatalf("metadata = %v", n.Metadata)
	}
}

func TestNotifySwallowsDeliveryFailure(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, failingSender{}, nil)

	svc.Notify(context.Background(), "user-1", "trade_created", "t", "m", nil)

	n := repo.only(t)
	if n.Status != domain.NotificationStatusFailed {
		t.Fatalf("status = %s, want FAILED", n.Status)
	}
	if n.ErrorMessage == "" {
		t.Fatal("error message not recorded")
	}
}

func TestNotifyAdminsFansOut(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, sender.NewMockSender(), []string{"admin-1", "admin-2"})

	svc.NotifyAdmins(context.Background(), "trade_disputed", "待仲裁交易", "交易 TRD-1 需要仲裁", nil)

	if len(repo.saved) != 2 {
		t.Fatalf("saved notifications = %d, want one per admin", len(repo.saved))
	}
	for _, n := range repo.saved {
		if n.UserID != "admin-1" && n.UserID != "admin-2" {
			t.Fatalf("unexpected recipient %s", n.UserID)
		}
	}
}

func TestMarkReadOwnerOnly(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, sender.NewMockSender(), nil)

	svc.Notify(context.Background(), "user-1", "trade_created", "t", "m", nil)
	n := repo.only(t)

	if err := svc.MarkRead(context.Background(), "user-2", n.NotificationID); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Fatalf("stranger mark-read: got %v, want ErrNotificationNotFound", err)
	}
	if err := svc.MarkRead(context.Background(), "user-1", n.NotificationID); err != nil {
		t.Fatalf("owner mark-read: %v", err)
	}
	if !n.Read {
		t.Fatal("notification not marked read")
	}
}
