package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Namespace is the global object the 3D-scene runtime reads widgets from:
// window.PopupWidgets[objectID].show().
const Namespace = "PopupWidgets"

// Program is the template-specific part of a behavior fragment: the body of
// a JavaScript function called with (config, on) that may return hooks
// {build(root), show(root), close(root)}. Programs are constants written by
// template authors; administrator data reaches them only through config.
type Program string

// Behavior describes one self-registering behavior fragment.
type Behavior struct {
	ObjectID string
	Program  Program
	// Data is exposed to the program as config and published as
	// window.PopupWidgets[id].config. It is embedded as a JSON literal.
	Data any
}

// registrationPrefix precedes the object id literal in every rendered fragment.
// ParseBehavior relies on it.
const registrationPrefix = "})(window." + Namespace + " = window." + Namespace + " || {}, "

// registrationMarker is the runtime tail followed by the registration call.
// It always ends the constant part of a fragment, before any data.
const registrationMarker = runtimeTail + registrationPrefix

const runtimeHead = `;(function (ns, id, config) {
  "use strict";
  var root = null, opened = false, bound = [];
  function on(el, type, fn) {
    el.addEventListener(type, fn);
    bound.push([el, type, fn]);
  }
  var hooks = (function (config, on) {
`

const runtimeTail = `
  })(config, on) || {};
  function findTemplate() {
    var key = window.CSS && CSS.escape ? CSS.escape(id) : id;
    return document.querySelector('template[data-popup-template="' + key + '"]');
  }
  function build() {
    var tpl = findTemplate();
    root = document.createElement("div");
    root.className = "popup-overlay";
    root.setAttribute("data-popup", id);
    root.hidden = true;
    if (tpl) root.appendChild(tpl.content.cloneNode(true));
    if (hooks.build) hooks.build(root);
    document.body.appendChild(root);
  }
  function show() {
    if (opened) return;
    if (!root) build();
    opened = true;
    root.hidden = false;
    on(root, "click", function (e) {
      if (e.target === root || (e.target.closest && e.target.closest("[data-popup-close]"))) close();
    });
    on(document, "keydown", function (e) {
      if (e.key === "Escape") close();
    });
    if (hooks.show) hooks.show(root);
  }
  function close() {
    if (!opened) return;
    opened = false;
    for (var i = 0; i < bound.length; i++) {
      bound[i][0].removeEventListener(bound[i][1], bound[i][2]);
    }
    bound = [];
    if (hooks.close) hooks.close(root);
    root.hidden = true;
  }
  ns[id] = { show: show, close: close, config: config };
`

// Render produces the behavior fragment. The object id is embedded with the
// string-literal escaper and Data as a JSON literal.
func (b Behavior) Render() (string, error) {
	if b.ObjectID == "" {
		return "", fmt.Errorf("behavior: object id is required")
	}
	if !utf8.ValidString(b.ObjectID) {
		return "", fmt.Errorf("behavior: object id %q is not valid UTF-8", b.ObjectID)
	}

	data := b.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("behavior: encoding data for %s: %w", b.ObjectID, err)
	}

	var sb strings.Builder
	sb.WriteString(runtimeHead)
	sb.WriteString(string(b.Program))
	sb.WriteString(runtimeTail)
	sb.WriteString(registrationPrefix)
	sb.WriteString(JSString(b.ObjectID))
	sb.WriteString(", ")
	sb.Write(payload)
	sb.WriteString(");\n")
	return sb.String(), nil
}

// Payload is what ParseBehavior recovers from a rendered fragment.
type Payload struct {
	ObjectID string
	Data     json.RawMessage
}

// ParseBehavior reads the object id and data literal back out of a fragment
// produced by Behavior.Render. The first registration marker is the real one;
// later copies can only come from data.
func ParseBehavior(src string) (Payload, error) {
	at := strings.Index(src, registrationMarker)
	if at < 0 {
		return Payload{}, fmt.Errorf("parse behavior: registration call not found")
	}
	rest := src[at+len(registrationMarker):]

	if !strings.HasPrefix(rest, `"`) {
		return Payload{}, fmt.Errorf("parse behavior: object id literal missing")
	}
	end := closingQuote(rest)
	if end < 0 {
		return Payload{}, fmt.Errorf("parse behavior: unterminated object id literal")
	}
	id, err := UnescapeJSString(rest[1:end])
	if err != nil {
		return Payload{}, fmt.Errorf("parse behavior: object id: %w", err)
	}

	rest = strings.TrimPrefix(rest[end+1:], ", ")
	dec := json.NewDecoder(strings.NewReader(rest))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Payload{}, fmt.Errorf("parse behavior: data literal: %w", err)
	}
	return Payload{ObjectID: id, Data: bytes.TrimSpace(raw)}, nil
}

// closingQuote returns the index of the quote that ends the literal opened at
// s[0], skipping escaped characters.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
