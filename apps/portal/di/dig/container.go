package dig_container

import (
	"context"
	"io"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoportal "github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/apps/portal/echo"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/apiclient"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/firebase"
	logsvc "github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/logger"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/notify"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/drivers"
)

type (
	StorageResult struct {
		dig.Out
		Store  storage.Store
		Closer io.Closer `name:"storageCloser"`
	}

	// StorageCloserParam is what main closes on the way out.
	StorageCloserParam struct {
		dig.In
		Closer io.Closer `name:"storageCloser"`
	}

	serverParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Session    *session.Store
		Identity   identity.Provider
		Routes     *routes.Table
		Redirector *routes.Redirector
		Toasts     *notify.Toasts
		Poller     *notify.Poller
		Bridge     *firebase.Bridge
	}
)

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap(conf, "portal"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, logger core.Logger) (StorageResult, error) {
	st, closer, err := drivers.Open(context.Background(), conf)
	if err != nil {
		return StorageResult{}, errors.Wrapf(err, "opening %q storage", conf.Storage.Driver)
	}
	logger.Info("session storage: " + conf.Storage.Driver)
	return StorageResult{Store: st, Closer: closer}, nil
}

func newAPIClient(conf *core.Config, st storage.Store, nav *routes.Redirector, logger core.Logger) *apiclient.Client {
	return apiclient.NewFromConfig(conf, st, nav, logger)
}

func newBridge(conf *core.Config, logger core.Logger) (*firebase.Bridge, error) {
	return firebase.NewBridge(context.Background(), conf, logger)
}

func newSession(
	conf *core.Config,
	api *apiclient.Client,
	st storage.Store,
	toasts *notify.Toasts,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *session.Store {
	return session.NewStore(session.Deps{
		Conf:       conf,
		API:        api,
		Storage:    st,
		Notifier:   toasts,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
	})
}

func newToasts(logger core.Logger) *notify.Toasts {
	return notify.NewToasts(logger)
}

func newPoller(conf *core.Config, api *apiclient.Client, sess *session.Store, logger core.Logger) *notify.Poller {
	return notify.NewPoller(api, sess, conf.Notifications.PollInterval, logger)
}

func newServer(p serverParams) (*echoportal.Server, error) {
	return echoportal.NewServer(echoportal.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Session:    p.Session,
		Identity:   p.Identity,
		Routes:     p.Routes,
		Redirector: p.Redirector,
		Toasts:     p.Toasts,
		Poller:     p.Poller,
		Avatars:    p.Bridge,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(routes.Default))
	must(c.Provide(routes.NewRedirector))
	must(c.Provide(newAPIClient))
	must(c.Provide(newBridge))
	must(c.Provide(func(b *firebase.Bridge) identity.Provider { return b }))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newToasts))
	must(c.Provide(newSession))
	must(c.Provide(newPoller))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
