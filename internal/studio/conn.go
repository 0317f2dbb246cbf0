package studio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/editor"
	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// request is an incoming websocket message.
type request struct {
	Type     string               `json:"type"`
	Object   string               `json:"object,omitempty"`
	Template string               `json:"template,omitempty"`
	Path     string               `json:"path,omitempty"`
	Value    any                  `json:"value,omitempty"`
	List     string               `json:"list,omitempty"`
	Index    int                  `json:"index,omitempty"`
	Item     record.Record        `json:"item,omitempty"`
	Format   editor.PreviewFormat `json:"format,omitempty"`
	Token    string               `json:"token,omitempty"`
}

// response is an outgoing websocket message.
type response struct {
	Type    string               `json:"type"`
	HTML    string               `json:"html,omitempty"`
	Format  editor.PreviewFormat `json:"format,omitempty"`
	State   *editor.Snapshot     `json:"state,omitempty"`
	Saved   *savedMessage        `json:"saved,omitempty"`
	Index   *int                 `json:"index,omitempty"`
	Kind    string               `json:"kind,omitempty"`
	Field   string               `json:"field,omitempty"`
	Message string               `json:"message,omitempty"`
}

type savedMessage struct {
	Object     string `json:"object"`
	TemplateID string `json:"template_id"`
	Hash       string `json:"hash"`
	Update     bool   `json:"update"`
}

// conn is one browser connection and its editing session. Writes come from
// the read loop, debounce timers and save goroutines, so they are serialized.
type conn struct {
	ws  *websocket.Conn
	log zerolog.Logger

	writeMu sync.Mutex

	tokenMu sync.Mutex
	token   string

	session *editor.Session
	saves   sync.WaitGroup
}

func (c *conn) send(resp response) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(resp); err != nil {
		c.log.Debug().Err(err).Msg("studio: websocket write")
	}
}

func (c *conn) sendState() {
	snap := c.session.Snapshot()
	c.send(response{Type: "state", State: &snap})
}

func (c *conn) sendError(err error) {
	resp := response{Type: "error", Kind: errorKind(err), Message: err.Error()}
	var ve *editor.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	c.send(resp)
}

// ShowForm implements editor.Sink.
func (c *conn) ShowForm(html string) { c.send(response{Type: "form", HTML: html}) }

// ShowPreview implements editor.Sink.
func (c *conn) ShowPreview(p editor.Preview) {
	c.send(response{Type: "preview", HTML: p.HTML, Format: p.Format})
}

// Credential implements editor.CredentialSource.
func (c *conn) Credential() (string, bool) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.token, c.token != ""
}

func (c *conn) setToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

func (s *Studio) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("studio: websocket upgrade")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, log: logging.With().Str("component", "studio").Str("remote", r.RemoteAddr).Logger()}
	c.token = auth.BearerToken(r)
	if c.token == "" {
		c.token = r.URL.Query().Get("token")
	}

	c.session, err = editor.New(editor.Options{
		Registry:    s.reg,
		Bridge:      s.bridge,
		Credentials: c,
		Sink:        c,
		Scheduler:   s.newScheduler(),
		Debounce:    s.debounce,
	})
	if err != nil {
		c.sendError(err)
		return
	}
	c.session.OnSaved(func(ev editor.SavedEvent) {
		c.send(response{Type: "saved", Saved: &savedMessage{
			Object:     ev.TargetObject,
			TemplateID: ev.TemplateID,
			Hash:       ev.Bundle.Hash(),
			Update:     ev.Update,
		}})
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		c.saves.Wait()
		if err := c.session.Close(); err != nil {
			c.log.Debug().Err(err).Msg("studio: closing session")
		}
	}()

	c.sendState()
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("studio: websocket read")
			}
			return
		}

		var req request
		if err := json.Unmarshal(msg, &req); err != nil {
			c.send(response{Type: "error", Kind: "request", Message: "invalid message format"})
			continue
		}
		c.dispatch(ctx, req)
	}
}

func (c *conn) dispatch(ctx context.Context, req request) {
	var err error
	switch req.Type {
	case "auth":
		c.setToken(req.Token)
		c.send(response{Type: "auth"})
		return
	case "open":
		err = c.session.OpenFromBridge(ctx, req.Object)
	case "select":
		err = c.session.SelectTemplate(req.Template)
	case "update":
		err = c.session.UpdateField(req.Path, req.Value)
		if err == nil {
			// The preview follows after the debounce; no state echo per keystroke.
			return
		}
	case "add_item":
		var index int
		index, err = c.session.AddListItem(req.List, req.Item)
		if err == nil {
			c.send(response{Type: "item_added", Index: &index})
		}
	case "remove_item":
		err = c.session.RemoveListItem(req.List, req.Index)
	case "format":
		err = c.session.SetPreviewFormat(req.Format)
	case "save":
		c.saves.Add(1)
		go func() {
			defer c.saves.Done()
			if _, err := c.session.Save(ctx); err != nil {
				c.sendError(err)
			}
			c.sendState()
		}()
		return
	case "close":
		err = c.session.Close()
	case "state":
	default:
		c.send(response{Type: "error", Kind: "request", Message: "unknown message type: " + req.Type})
		return
	}
	if err != nil {
		c.sendError(err)
		return
	}
	c.sendState()
}

// errorKind classifies session errors for the page.
func errorKind(err error) string {
	var (
		ve *editor.ValidationError
		ae *editor.AuthenticationError
		pe *editor.PersistenceError
		re *catalog.RenderError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ae):
		return "authentication"
	case errors.As(err, &pe):
		return "persistence"
	case errors.As(err, &re):
		return "render"
	case errors.Is(err, catalog.ErrTemplateNotFound):
		return "not_found"
	case errors.Is(err, editor.ErrSaveInProgress):
		return "save_in_progress"
	case errors.Is(err, editor.ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
