package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/bridge"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/config"
	"github.com/ziadkadry99/popup-studio/internal/db"
	"github.com/ziadkadry99/popup-studio/internal/editor"
	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/notifications"
	"github.com/ziadkadry99/popup-studio/internal/widgets"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

// loadConfig loads and validates the config, then configures logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `popupstudio init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: string(cfg.LogFormat)})
	return cfg, nil
}

// newRegistry returns the locked registry of built-in templates.
func newRegistry() (*catalog.Registry, error) {
	reg, err := widgets.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("registering templates: %w", err)
	}
	return reg, nil
}

// workspace is the local widget store under cfg.DataDir.
type workspace struct {
	db      *db.DB
	jwt     *auth.JWTManager
	service *widgetstore.Service
}

func openWorkspace(cfg *config.Config, reg *catalog.Registry) (*workspace, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt_secret is not set; run `popupstudio init` or set POPUPSTUDIO_JWT_SECRET")
	}
	jwtm, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	notifStore := notifications.NewStore(database)
	svc := widgetstore.NewService(
		widgetstore.NewStore(database),
		audit.NewStore(database),
		notifications.NewDispatcher(notifStore, nil),
		reg,
	)
	return &workspace{db: database, jwt: jwtm, service: svc}, nil
}

func (w *workspace) Close() error { return w.db.Close() }

// selfToken issues an editor token for the local OS user, so the CLI can
// save to its own workspace without a login.
func (w *workspace) selfToken() (string, error) {
	name := "local"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	token, _, err := w.jwt.GenerateToken(name, auth.RoleEditor)
	return token, err
}

// persistence is the bridge the CLI editor saves through and the credential
// it presents.
type persistence struct {
	bridge bridge.Bridge
	creds  editor.CredentialSource
	// store is set only for a local workspace.
	store *widgetstore.Store
	close func() error
}

// openPersistence connects to the remote server named in cfg, or opens the
// local workspace.
func openPersistence(cfg *config.Config, reg *catalog.Registry) (*persistence, error) {
	if cfg.Remote() {
		server := cfg.APIURL
		return &persistence{
			bridge: bridge.NewHTTP(server, cfg.RequestTimeout, cfg.Breaker),
			creds:  editor.CredentialFunc(func() (string, bool) { return auth.TokenFor(server) }),
			close:  func() error { return nil },
		}, nil
	}

	ws, err := openWorkspace(cfg, reg)
	if err != nil {
		return nil, err
	}
	token := os.Getenv(auth.TokenEnv)
	if token == "" {
		if token, err = ws.selfToken(); err != nil {
			ws.Close()
			return nil, err
		}
	}
	return &persistence{
		bridge: bridge.NewLocal(ws.service, ws.jwt),
		creds:  editor.StaticCredential(token),
		store:  ws.service.Store(),
		close:  ws.Close,
	}, nil
}
