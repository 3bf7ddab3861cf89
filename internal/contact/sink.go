// Package contact accepts contact form leads. The store write is the
// durable record of a lead; the email notification that follows it is
// best-effort and never fails a submission.
package contact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/mailer"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// ErrStore is returned when the lead could not be written.
var ErrStore = errors.New("contact: could not save submission")

// emailShape is the basic x@y.z check.
var emailShape = regexp.MustCompile(`\S+@\S+\.\S+`)

// Submission is the visitor's form input. Extra is set when the company
// and phone disclosure is open, which makes phone required.
type Submission struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Phone   string `json:"phone" form:"phone"`
	Company string `json:"company" form:"company"`
	Message string `json:"message" form:"message"`
	Extra   bool   `json:"extra" form:"extra"`
}

// ValidationError maps form fields to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = e.Fields[k]
	}
	return "contact: " + strings.Join(msgs, ", ")
}

// Validate checks the submission the way the form does before anything is
// sent.
func Validate(s Submission) error {
	errs := validation.Errors{
		"name": validation.Validate(strings.TrimSpace(s.Name),
			validation.Required.Error("Name is required")),
		"email": validation.Validate(strings.TrimSpace(s.Email),
			validation.Required.Error("Email is required"),
			validation.Match(emailShape).Error("Email is invalid")),
		"message": validation.Validate(strings.TrimSpace(s.Message),
			validation.Required.Error("Message is required")),
	}
	if s.Extra {
		errs["phone"] = validation.Validate(strings.TrimSpace(s.Phone),
			validation.Required.Error("Phone is required"))
	}
	if err := errs.Filter(); err != nil {
		fields := map[string]string{}
		for k, v := range err.(validation.Errors) {
			fields[k] = v.Error()
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ChangeSink is told about every stored submission.
type ChangeSink interface {
	Record(ctx context.Context, typeKey, action, id string)
}

// Config addresses the lead notification.
type Config struct {
	From string
	To   []string

	// SendTimeout bounds the notification; zero means 10s.
	SendTimeout time.Duration
}

// Sink stores submissions and notifies about them.
type Sink struct {
	store    store.Store
	t        *content.Type
	notifier mailer.Notifier
	cfg      Config
	sink     ChangeSink
	log      *zap.Logger
	now      func() time.Time
}

// NewSink creates a Sink. sink may be nil.
func NewSink(s store.Store, reg *content.Registry, n mailer.Notifier, cfg Config, sink ChangeSink, log *zap.Logger) *Sink {
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Sink{
		store:    s,
		t:        reg.MustGet(content.TypeFormSubmissions),
		notifier: n,
		cfg:      cfg,
		sink:     sink,
		log:      log.Named("contact"),
		now:      time.Now,
	}
}

// Submit validates s, writes it as an unread lead, and then sends the
// notification. It returns a *ValidationError without touching the store,
// or an error wrapping ErrStore when the write fails. A notification
// failure is logged only.
func (k *Sink) Submit(ctx context.Context, s Submission) (content.Item, error) {
	if err := Validate(s); err != nil {
		return content.Item{}, err
	}

	fields := content.Fields{
		"full_name": strings.TrimSpace(s.Name),
		"email":     strings.TrimSpace(s.Email),
		"phone":     strings.TrimSpace(s.Phone),
		"company":   strings.TrimSpace(s.Company),
		"message":   s.Message,
		"is_read":   false,
	}
	it, err := k.store.Insert(ctx, k.t, content.Item{Fields: fields, IsActive: true})
	if err != nil {
		k.log.Error("store submission failed", zap.Error(err))
		return content.Item{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if k.sink != nil {
		k.sink.Record(ctx, k.t.Key, "create", it.ID)
	}

	k.notify(ctx, s)
	return it, nil
}

func (k *Sink) notify(ctx context.Context, s Submission) {
	msg, err := mailer.LeadMessage(k.cfg.From, k.cfg.To, mailer.Lead{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Phone:   strings.TrimSpace(s.Phone),
		Company: strings.TrimSpace(s.Company),
		Message: s.Message,
		At:      k.now(),
	})
	if err != nil {
		k.log.Warn("build notification failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.SendTimeout)
	defer cancel()
	id, err := k.notifier.Send(ctx, msg)
	if err != nil {
		k.log.Warn("email send failed, but form was saved", zap.Error(err))
		return
	}
	k.log.Debug("lead notification sent", zap.String("id", id))
}
