package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/editor"
	"github.com/ziadkadry99/popup-studio/internal/export"
)

var editCmd = &cobra.Command{
	Use:   "edit <object>",
	Short: "Edit a scene object's popup in the terminal",
	Long: `Opens an editing session for a scene object. Field edits refresh a preview
page under the data directory; open it in a browser and reload as you go.
Saving writes to the configured widget store and ends the session.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
}

// fileSink writes the latest preview to a standalone page.
type fileSink struct {
	path string
}

func (s fileSink) ShowForm(string) {}

func (s fileSink) ShowPreview(p editor.Preview) {
	page := "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>Preview</title></head><body>" + p.HTML + "</body></html>"
	if err := os.WriteFile(s.path, []byte(page), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: writing preview: %v\n", err)
	}
}

func runEdit(cmd *cobra.Command, args []string) error {
	object := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	p, err := openPersistence(cfg, reg)
	if err != nil {
		return err
	}
	defer p.close()

	previewDir := filepath.Join(cfg.DataDir, "preview")
	if err := os.MkdirAll(previewDir, 0o755); err != nil {
		return err
	}
	sink := fileSink{path: filepath.Join(previewDir, export.FileName(object))}

	session, err := editor.New(editor.Options{
		Registry:    reg,
		Bridge:      p.bridge,
		Credentials: p.creds,
		Sink:        sink,
		Debounce:    cfg.PreviewDebounce,
	})
	if err != nil {
		return err
	}
	session.OnSaved(func(ev editor.SavedEvent) {
		verb := "Created"
		if ev.Update {
			verb = "Updated"
		}
		fmt.Printf("%s %s (%s, %s)\n", verb, ev.TargetObject, ev.TemplateID, ev.Bundle.Hash()[:12])
	})

	ctx := cmd.Context()
	if err := session.OpenFromBridge(ctx, object); err != nil {
		return err
	}
	fmt.Printf("Editing %s. Preview: %s\n", object, sink.path)

	if session.Snapshot().TemplateID == "" {
		if err := chooseTemplate(session, reg); err != nil {
			return err
		}
	}

	for {
		snap := session.Snapshot()
		if snap.State == editor.StateClosed {
			return nil
		}
		_, action, err := (&promptui.Select{
			Label: fmt.Sprintf("%s [%s]", object, snap.TemplateID),
			Items: []string{"Edit field", "Add list item", "Remove list item", "Change template", "Preview format", "Show config", "Save", "Quit without saving"},
			Size:  8,
		}).Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return session.Close()
			}
			return err
		}

		switch action {
		case "Edit field":
			err = editField(session)
		case "Add list item":
			var list string
			if list, err = (&promptui.Prompt{Label: "List field", Default: "contacts"}).Run(); err == nil {
				var idx int
				if idx, err = session.AddListItem(list, nil); err == nil {
					fmt.Printf("Added %s[%d]\n", list, idx)
				}
			}
		case "Remove list item":
			err = removeItem(session)
		case "Change template":
			err = chooseTemplate(session, reg)
		case "Preview format":
			var f string
			formats := make([]string, 0, 5)
			for _, pf := range editor.PreviewFormats() {
				formats = append(formats, string(pf))
			}
			if _, f, err = (&promptui.Select{Label: "Format", Items: formats}).Run(); err == nil {
				err = session.SetPreviewFormat(editor.PreviewFormat(f))
			}
		case "Show config":
			err = printConfig(snap)
		case "Save":
			_, err = session.Save(ctx)
		case "Quit without saving":
			return session.Close()
		}
		if err != nil {
			reportEditError(err)
		}
	}
}

func chooseTemplate(session *editor.Session, reg *catalog.Registry) error {
	entries := reg.List()
	items := make([]string, len(entries))
	for i, e := range entries {
		items[i] = fmt.Sprintf("%s %s (%s)", e.Icon, e.Name, e.ID)
	}
	idx, _, err := (&promptui.Select{
		Label: "Template",
		Items: items,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
		},
	}).Run()
	if err != nil {
		return err
	}
	return session.SelectTemplate(entries[idx].ID)
}

func editField(session *editor.Session) error {
	path, err := (&promptui.Prompt{Label: "Field path (e.g. name, contacts[0].value)"}).Run()
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	current, _ := session.Snapshot().Config.Get(path)
	def := ""
	if current != nil {
		def = fmt.Sprint(current)
	}
	raw, err := (&promptui.Prompt{Label: "Value", Default: def, AllowEdit: true}).Run()
	if err != nil {
		return err
	}
	value, err := coerce(current, raw)
	if err != nil {
		return &editor.ValidationError{Field: path, Reason: err.Error()}
	}
	return session.UpdateField(path, value)
}

func removeItem(session *editor.Session) error {
	list, err := (&promptui.Prompt{Label: "List field", Default: "contacts"}).Run()
	if err != nil {
		return err
	}
	raw, err := (&promptui.Prompt{Label: "Index", Validate: func(s string) error {
		_, err := strconv.Atoi(strings.TrimSpace(s))
		return err
	}}).Run()
	if err != nil {
		return err
	}
	idx, _ := strconv.Atoi(strings.TrimSpace(raw))
	return session.RemoveListItem(list, idx)
}

func printConfig(snap editor.Snapshot) error {
	out, err := yamlString(snap.Config)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// reportEditError prints err with a hint for the error kind.
func reportEditError(err error) {
	var (
		ve *editor.ValidationError
		ae *editor.AuthenticationError
		pe *editor.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		fmt.Fprintf(os.Stderr, "Invalid: %v\n", err)
	case errors.As(err, &ae):
		fmt.Fprintf(os.Stderr, "Not authorized: %v\nRun `popupstudio auth login` and try again.\n", err)
	case errors.As(err, &pe):
		fmt.Fprintf(os.Stderr, "Save failed: %v\nYour changes are kept; try again.\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// coerce converts raw to the type of current so numeric and boolean fields
// stay typed.
func coerce(current any, raw string) (any, error) {
	switch current.(type) {
	case bool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case float64, float32, int, int64:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	default:
		return raw, nil
	}
}
