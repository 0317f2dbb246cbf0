package widgets

import (
	"errors"

	"github.com/ziadkadry99/popup-studio/internal/catalog"
)

// Builtin pairs a template with the id it is registered under.
type Builtin struct {
	ID       string
	Template catalog.Template
}

// Builtins returns the built-in templates in catalog order.
func Builtins() []Builtin {
	return []Builtin{
		{ID: "contact", Template: Contact{}},
		{ID: "info", Template: Info{}},
		{ID: "product", Template: Product{}},
		{ID: "video", Template: Video{}},
		{ID: "website", Template: Website{}},
		{ID: "freeform", Template: Freeform{}},
		{ID: "carousel", Template: Carousel{}},
	}
}

// RegisterBuiltins registers every built-in template with reg. A failed
// registration does not stop the others; all failures are returned joined.
func RegisterBuiltins(reg *catalog.Registry) error {
	var errs []error
	for _, b := range Builtins() {
		if err := reg.Register(b.ID, b.Template); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRegistry returns a locked registry holding the built-in templates.
func NewRegistry() (*catalog.Registry, error) {
	reg := catalog.NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	reg.Lock()
	return reg, nil
}
