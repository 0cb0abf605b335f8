package messaging

import (
	"context"
	"time"

	"github.com/artztall/user-service/config"
	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/pkg/mailer"
	mailtpl "github.com/artztall/user-service/pkg/mailer/templates"
)

// Publisher puts a JSON message on the email queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// EmailNotifier queues account emails for the email worker.
type EmailNotifier struct {
	pub Publisher
	cfg *config.Config
	now func() time.Time
}

var _ application.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(pub Publisher, cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{pub: pub, cfg: cfg, now: time.Now}
}

func (n *EmailNotifier) Welcome(ctx context.Context, acc entity.Account) error {
	base := acc.Base()
	return n.pub.PublishJSON(ctx, mailer.EmailJob{
		To:       base.Email,
		Template: mailtpl.Welcome,
		Data:     mailtpl.NewWelcomeData(n.cfg, base.Name, base.Email, base.Kind.String()),
	})
}

// LoginAlert queues a login notification. Location is resolved by the worker.
func (n *EmailNotifier) LoginAlert(ctx context.Context, acc entity.Account, meta application.LoginMeta) error {
	base := acc.Base()
	at := n.now()
	if base.LastLoginAt != nil {
		at = *base.LastLoginAt
	}
	return n.pub.PublishJSON(ctx, mailer.EmailJob{
		To:       base.Email,
		Template: mailtpl.LoginNotification,
		Data: mailtpl.NewLoginNotificationData(n.cfg, base.Name, base.Email,
			mailtpl.WithIP(meta.IP),
			mailtpl.WithUserAgent(meta.UserAgent),
			mailtpl.WithTime(at),
		),
	})
}
