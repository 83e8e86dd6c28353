package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/star-discord/legion-kanri-bot/internal/audit"
	"github.com/star-discord/legion-kanri-bot/internal/config"
	"github.com/star-discord/legion-kanri-bot/internal/httpmw"
	"github.com/star-discord/legion-kanri-bot/internal/notify"
	"github.com/star-discord/legion-kanri-bot/internal/permission"
	"github.com/star-discord/legion-kanri-bot/internal/quest"
)

type Options struct {
	Config *config.Config
	Logger *log.Logger

	// Dispatcher overrides the default log-backed notifier; the
	// Discord gateway wires its own implementation here.
	Dispatcher notify.Dispatcher
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	cfg := opts.Config
	if strings.TrimSpace(cfg.Data.Dir) == "" {
		cfg.Data.Dir = "data"
	}

	store, err := quest.NewFileRepo(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}
	store.SetLockWait(time.Duration(cfg.Quests.LockWaitMS) * time.Millisecond)

	auditLog := audit.NewMemoryLog(cfg.Audit.MaxEntries, opts.Logger)
	perms := permission.NewRoleResolver(cfg.Permissions.ManagerRoles)
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(opts.Logger)
	}

	svc := quest.NewService(store, perms, dispatcher, auditLog, quest.Policy{
		ReopenOnCancel: cfg.Quests.ReopenOnCancel,
		MenuLimit:      cfg.Quests.MenuLimit,
	}, opts.Logger)

	questHandler := quest.NewHandler(svc, opts.Logger)
	questHandler.SetAuditLog(auditLog)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/guilds/", questHandler.Guilds)

	return httpmw.Chain(mux,
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		httpmw.WithAccessLog(opts.Logger),
	), nil
}
