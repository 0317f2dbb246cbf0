package widgets

import (
	"html/template"
	"strings"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Product is a product card: main image with clickable thumbnails, price,
// description and a purchase button.
type Product struct{}

var productForm = formSpec{
	Fields: append([]field{
		{Key: "title", Label: "Product name", Kind: kindText},
		{Key: "price", Label: "Price", Kind: kindText, Placeholder: "49.90"},
		{Key: "currency", Label: "Currency", Kind: kindText, Placeholder: "EUR"},
		{Key: "description", Label: "Description (markdown)", Kind: kindTextarea},
		{Key: "image", Label: "Main image URL", Kind: kindURL},
		{Key: "button_text", Label: "Button text", Kind: kindText},
		{Key: "button_url", Label: "Button link", Kind: kindURL},
	}, themeFields...),
	Lists: []listSpec{{
		Key:      "extra_images",
		Label:    "Extra images",
		AddLabel: "Add image",
		Item: []field{
			{Key: "url", Label: "Image URL", Kind: kindURL},
			{Key: "caption", Label: "Caption", Kind: kindText},
		},
	}},
}

var productMarkup = markupSet("product", `{{define "card"}}<div class="popup-product">
{{- with .Data.Image}}<img class="popup-image" data-main-image src="{{.}}" alt="">{{end -}}
{{- if .Data.Thumbs}}<div class="popup-thumbs">{{range .Data.Thumbs}}<img class="popup-thumb" data-thumb="{{.URL}}" src="{{.URL}}" alt="{{.Caption}}" title="{{.Caption}}">{{end}}</div>{{end -}}
<h2 class="popup-title">{{.Data.Title}}</h2>
{{- with .Data.Price}}<p class="popup-price">{{.}}</p>{{end -}}
<div class="popup-body">{{.Data.Description}}</div>
{{- if .Data.ButtonURL}}<a class="popup-button" href="{{.Data.ButtonURL}}" target="_blank" rel="noopener noreferrer">{{.Data.ButtonText}}</a>{{end -}}
</div>{{end}}`)

const productCSS = `{{.Scope}} .popup-thumbs { display: flex; gap: 6px; margin: -8px 0 12px; flex-wrap: wrap; }
{{.Scope}} .popup-thumb { width: 56px; height: 56px; object-fit: cover; border-radius: 4px; cursor: pointer; }
{{.Scope}} .popup-price { font-size: 20px; font-weight: 600; color: var(--popup-primary); margin: 4px 0 8px; }
{{.Scope}} .popup-body { line-height: 1.5; margin-bottom: 16px; }
`

// productProgram swaps the main image when a thumbnail is clicked.
const productProgram emit.Program = `var main = null;
    return {
      build: function (root) { main = root.querySelector("[data-main-image]"); },
      show: function (root) {
        var thumbs = root.querySelectorAll("[data-thumb]");
        for (var i = 0; i < thumbs.length; i++) {
          (function (thumb) {
            on(thumb, "click", function () {
              if (main) main.src = thumb.getAttribute("data-thumb");
            });
          })(thumbs[i]);
        }
      }
    };`

type productThumb struct {
	URL     string
	Caption string
}

type productView struct {
	Title       string
	Price       string
	Description template.HTML
	Image       string
	Thumbs      []productThumb
	ButtonText  string
	ButtonURL   string
}

func (Product) Name() string        { return "Product card" }
func (Product) Icon() string        { return "🛍️" }
func (Product) Description() string { return "Product with price, gallery thumbnails and a buy button" }

func (Product) DefaultConfig() record.Record {
	cfg := record.Record{
		"title":        "",
		"price":        "",
		"currency":     "",
		"description":  "",
		"image":        "",
		"extra_images": []any{},
		"button_text":  "Buy now",
		"button_url":   "",
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Product) RequiredFields() []string { return []string{"title"} }

func (Product) NewListItem(list string) (record.Record, bool) { return productForm.newItem(list) }

func (Product) RenderFormFields(cfg record.Record) (string, error) { return productForm.render(cfg) }

func (p Product) RenderPreview(cfg record.Record) (string, error) {
	v, err := p.view(cfg)
	if err != nil {
		return "", err
	}
	return execute(productMarkup, "preview", view{Theme: themeFrom(cfg), Data: v})
}

func (p Product) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	v, err := p.view(cfg)
	if err != nil {
		return emit.Bundle{}, err
	}
	return bundleParts(objectID, productMarkup, view{Theme: themeFrom(cfg), Data: v}, 480, productCSS, productProgram, cfg)
}

func (Product) view(cfg record.Record) (productView, error) {
	desc, err := renderMarkdown(cfg.String("description"))
	if err != nil {
		return productView{}, err
	}
	v := productView{
		Title:       cfg.String("title"),
		Price:       strings.TrimSpace(cfg.String("price") + " " + cfg.String("currency")),
		Description: desc,
		Image:       cfg.String("image"),
		ButtonText:  cfg.String("button_text"),
	}
	if u := cfg.String("button_url"); u != "" {
		v.ButtonURL = withScheme(u)
	}
	// The main image leads the thumbnail strip so the user can switch back to it.
	for _, item := range cfg.List("extra_images") {
		u := strings.TrimSpace(item.String("url"))
		if u == "" {
			continue
		}
		if len(v.Thumbs) == 0 && v.Image != "" {
			v.Thumbs = append(v.Thumbs, productThumb{URL: v.Image, Caption: v.Title})
		}
		v.Thumbs = append(v.Thumbs, productThumb{URL: u, Caption: item.String("caption")})
	}
	if v.Image == "" && len(v.Thumbs) > 0 {
		v.Image = v.Thumbs[0].URL
	}
	return v, nil
}
