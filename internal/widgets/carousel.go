package widgets

import (
	"strings"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Carousel is an image gallery with previous/next controls and optional
// automatic rotation while open.
type Carousel struct{}

var carouselForm = formSpec{
	Fields: append([]field{
		{Key: "title", Label: "Title", Kind: kindText},
		{Key: "interval_ms", Label: "Auto-advance every (ms, 0 = off)", Kind: kindNumber},
		{Key: "show_captions", Label: "Show captions", Kind: kindCheckbox},
	}, themeFields...),
	Lists: []listSpec{{
		Key:      "images",
		Label:    "Images",
		AddLabel: "Add image",
		Item: []field{
			{Key: "url", Label: "Image URL", Kind: kindURL},
			{Key: "caption", Label: "Caption", Kind: kindText},
			{Key: "link", Label: "Link", Kind: kindURL},
		},
	}},
}

var carouselMarkup = markupSet("carousel", `{{define "card"}}<div class="popup-carousel">
{{- with .Data.Title}}<h2 class="popup-title">{{.}}</h2>{{end -}}
<div class="popup-slides">
{{- range $i, $s := .Data.Slides}}<figure class="popup-slide" data-slide="{{$i}}">
{{- if $s.Link}}<a href="{{$s.Link}}" target="_blank" rel="noopener noreferrer"><img src="{{$s.URL}}" alt="{{$s.Caption}}"></a>{{else}}<img src="{{$s.URL}}" alt="{{$s.Caption}}">{{end -}}
{{- if and $.Data.Captions $s.Caption}}<figcaption>{{$s.Caption}}</figcaption>{{end -}}
</figure>{{else}}<p class="popup-subtitle">No images yet</p>{{end -}}
</div>
{{- if gt (len .Data.Slides) 1}}<div class="popup-carousel-nav"><button type="button" data-prev aria-label="Previous">&lsaquo;</button><button type="button" data-next aria-label="Next">&rsaquo;</button></div>{{end -}}
</div>{{end}}`)

const carouselCSS = `{{.Scope}} .popup-slides { position: relative; margin: 12px 0; }
{{.Scope}} .popup-slide { margin: 0; }
{{.Scope}} .popup-slide[hidden] { display: none; }
{{.Scope}} .popup-slide img { display: block; width: 100%; max-height: 70vh; object-fit: contain; border-radius: 8px; }
{{.Scope}} .popup-slide figcaption { margin-top: 6px; font-size: 14px; opacity: 0.8; text-align: center; }
{{.Scope}} .popup-carousel-nav { display: flex; justify-content: space-between; }
{{.Scope}} .popup-carousel-nav button { border: 0; border-radius: 50%; width: 36px; height: 36px; cursor: pointer;
  background: var(--popup-primary); color: var(--popup-bg); font-size: 20px; }
`

const carouselProgram emit.Program = `var slides = [], index = 0, timer = null;
    function go(i) {
      if (!slides.length) return;
      slides[index].hidden = true;
      index = (i + slides.length) % slides.length;
      slides[index].hidden = false;
    }
    return {
      build: function (root) {
        slides = Array.prototype.slice.call(root.querySelectorAll("[data-slide]"));
        for (var i = 0; i < slides.length; i++) slides[i].hidden = i !== 0;
      },
      show: function (root) {
        var prev = root.querySelector("[data-prev]"), next = root.querySelector("[data-next]");
        if (prev) on(prev, "click", function () { go(index - 1); });
        if (next) on(next, "click", function () { go(index + 1); });
        var ms = Number(config.interval_ms) || 0;
        if (ms > 0 && slides.length > 1) timer = setInterval(function () { go(index + 1); }, ms);
      },
      close: function () {
        if (timer) clearInterval(timer);
        timer = null;
      }
    };`

type carouselSlide struct {
	URL     string
	Caption string
	Link    string
}

type carouselView struct {
	Title    string
	Captions bool
	Slides   []carouselSlide
}

func (Carousel) Name() string        { return "Image carousel" }
func (Carousel) Icon() string        { return "🖼️" }
func (Carousel) Description() string { return "Gallery of images with captions and auto-advance" }

func (Carousel) DefaultConfig() record.Record {
	cfg := record.Record{
		"title":         "",
		"interval_ms":   5000,
		"show_captions": true,
		"images":        []any{},
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Carousel) NewListItem(list string) (record.Record, bool) { return carouselForm.newItem(list) }

func (Carousel) RenderFormFields(cfg record.Record) (string, error) { return carouselForm.render(cfg) }

func (c Carousel) RenderPreview(cfg record.Record) (string, error) {
	return execute(carouselMarkup, "preview", view{Theme: themeFrom(cfg), Data: c.view(cfg)})
}

func (c Carousel) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	data := cfg.Clone()
	interval := cfg.Int("interval_ms", 5000)
	if interval < 0 {
		interval = 0
	}
	data["interval_ms"] = interval
	return bundleParts(objectID, carouselMarkup, view{Theme: themeFrom(cfg), Data: c.view(cfg)}, 720, carouselCSS, carouselProgram, data)
}

func (Carousel) view(cfg record.Record) carouselView {
	v := carouselView{Title: cfg.String("title"), Captions: cfg.Bool("show_captions")}
	for _, item := range cfg.List("images") {
		u := strings.TrimSpace(item.String("url"))
		if u == "" {
			continue
		}
		s := carouselSlide{URL: u, Caption: item.String("caption")}
		if link := strings.TrimSpace(item.String("link")); link != "" {
			s.Link = withScheme(link)
		}
		v.Slides = append(v.Slides, s)
	}
	return v
}
