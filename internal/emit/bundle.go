package emit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Bundle is the standalone widget artifact persisted for a scene object and
// loaded later by the 3D runtime, independently of the editor.
type Bundle struct {
	ObjectID   string `json:"object_id"`
	TemplateID string `json:"template_id"`
	Markup     string `json:"markup"`
	Style      string `json:"style"`
	Behavior   string `json:"behavior"`
}

// Document joins the three fragments into one embeddable HTML fragment.
func (b Bundle) Document() string {
	var sb strings.Builder
	sb.WriteString(`<style data-popup-style="`)
	sb.WriteString(EscapeHTML(b.ObjectID))
	sb.WriteString("\">\n")
	sb.WriteString(b.Style)
	sb.WriteString("\n</style>\n")
	sb.WriteString(b.Markup)
	sb.WriteString("\n<script>\n")
	sb.WriteString(b.Behavior)
	sb.WriteString("</script>\n")
	return sb.String()
}

// Hash returns a stable content hash of the bundle and its identity.
func (b Bundle) Hash() string {
	h := sha256.New()
	for _, part := range []string{b.ObjectID, b.TemplateID, b.Markup, b.Style, b.Behavior} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ScopeSelector returns the CSS selector that confines a widget's rules to its
// own root element.
func ScopeSelector(objectID string) string {
	return `[data-popup="` + EscapeCSSString(objectID) + `"]`
}

// Placeholder is the visible fragment shown in place of output a template
// failed to render.
func Placeholder(message string) string {
	return `<div class="popup-render-error" role="alert">Preview unavailable: ` + EscapeHTML(message) + `</div>`
}

// ErrObjectMismatch is returned by Verify when a bundle registers itself under
// a different name than the scene object it is stored for. Such a widget
// would never open.
var ErrObjectMismatch = errors.New("bundle object id does not match target object")

// Verify checks that b's behavior registers under objectID.
func (b Bundle) Verify(objectID string) error {
	payload, err := ParseBehavior(b.Behavior)
	if err != nil {
		return fmt.Errorf("verifying bundle for %q: %w", objectID, err)
	}
	if payload.ObjectID != objectID || b.ObjectID != objectID {
		return fmt.Errorf("%w: target %q, bundle %q", ErrObjectMismatch, objectID, payload.ObjectID)
	}
	return nil
}
