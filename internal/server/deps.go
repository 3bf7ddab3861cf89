package server

import (
	"fmt"

	"github.com/primal-host/primal-site/internal/auth"
	"github.com/primal-host/primal-site/internal/config"
	"github.com/primal-host/primal-site/internal/contact"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/editor"
	"github.com/primal-host/primal-site/internal/events"
	"github.com/primal-host/primal-site/internal/mailer"
	"github.com/primal-host/primal-site/internal/media"
	"github.com/primal-host/primal-site/internal/render"
	"github.com/primal-host/primal-site/internal/resolver"
	"github.com/primal-host/primal-site/internal/settings"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// Backends are the storage implementations the components run on.
type Backends struct {
	Store    store.Store
	Media    media.Repository
	Changes  events.Log
	Notifier mailer.Notifier
	DB       Pinger
}

// NewDeps builds every component over the given backends.
func NewDeps(cfg *config.Config, b Backends, log *zap.Logger) (Deps, error) {
	reg := content.Builtin()
	tmpl, err := render.NewTemplates()
	if err != nil {
		return Deps{}, fmt.Errorf("server: %w", err)
	}

	feed := events.NewManager(b.Changes, log)
	res := resolver.New(b.Store, reg, content.BuiltinDefaults(), log)
	set := settings.New(b.Store, reg, feed, log)

	return Deps{
		Store:    b.Store,
		Registry: reg,
		Resolver: res,
		Editors:  editor.NewSet(reg, b.Store, feed, log),
		Settings: set,
		Contact: contact.NewSink(b.Store, reg, b.Notifier, contact.Config{
			From: cfg.Email.From,
			To:   cfg.Email.To,
		}, feed, log),
		Inbox:     contact.NewInbox(b.Store, reg, feed, log),
		Media:     media.NewLibrary(b.Media),
		Events:    feed,
		JWT:       auth.NewJWTManager(cfg.JWTSecret, cfg.SiteURL),
		Pages:     render.NewPages(res, set, render.NewMarkdown(), cfg.SiteURL),
		Templates: tmpl,
		DB:        b.DB,
		Log:       log,
	}, nil
}
