package widgets

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Video embeds a YouTube or Vimeo player, or plays a video file directly.
type Video struct{}

var videoForm = formSpec{
	Fields: append([]field{
		{Key: "title", Label: "Title", Kind: kindText},
		{Key: "url", Label: "Video URL", Kind: kindURL, Placeholder: "https://www.youtube.com/watch?v=..."},
		{Key: "caption", Label: "Caption", Kind: kindTextarea},
		{Key: "autoplay", Label: "Start playing when opened", Kind: kindCheckbox},
	}, themeFields...),
}

// The bundle's iframe has no src until the popup opens, so hidden players do
// not load or keep playing after close.
var videoMarkup = markupSet("video", `{{define "card"}}<div class="popup-video">
{{- with .Data.Title}}<h2 class="popup-title">{{.}}</h2>{{end -}}
<div class="popup-video-frame">
{{- if .Data.File}}<video data-popup-video controls preload="none" src="{{.Data.File}}"></video>
{{- else if .Data.Embed}}<iframe data-popup-video title="{{.Data.Title}}" allow="autoplay; encrypted-media; picture-in-picture" allowfullscreen {{if .Data.Eager}}src="{{.Data.Embed}}"{{end}}></iframe>
{{- else}}<p class="popup-video-missing">No video selected</p>{{end -}}
</div>
{{- with .Data.Caption}}<p class="popup-subtitle">{{.}}</p>{{end -}}
</div>{{end}}`)

const videoCSS = `{{.Scope}} .popup-video-frame { position: relative; padding-top: 56.25%; margin: 12px 0; background: #000; border-radius: 8px; overflow: hidden; }
{{.Scope}} .popup-video-frame iframe, {{.Scope}} .popup-video-frame video { position: absolute; inset: 0; width: 100%; height: 100%; border: 0; }
{{.Scope}} .popup-video-missing { position: absolute; inset: 0; margin: 0; display: flex; align-items: center; justify-content: center; color: #fff; }
`

const videoProgram emit.Program = `var media = null;
    return {
      build: function (root) { media = root.querySelector("[data-popup-video]"); },
      show: function () {
        if (!media) return;
        if (media.tagName === "IFRAME") media.src = config.embed_url;
        else if (config.autoplay && media.play) media.play();
      },
      close: function () {
        if (!media) return;
        if (media.tagName === "IFRAME") media.src = "about:blank";
        else if (media.pause) media.pause();
      }
    };`

type videoView struct {
	Title   string
	Caption string
	Embed   string
	File    string
	Eager   bool
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)

func (Video) Name() string        { return "Video" }
func (Video) Icon() string        { return "🎬" }
func (Video) Description() string { return "YouTube, Vimeo or video file player" }

func (Video) DefaultConfig() record.Record {
	cfg := record.Record{
		"title":    "",
		"url":      "",
		"caption":  "",
		"autoplay": false,
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Video) RequiredFields() []string { return []string{"url"} }

func (Video) RenderFormFields(cfg record.Record) (string, error) { return videoForm.render(cfg) }

func (v Video) RenderPreview(cfg record.Record) (string, error) {
	vv := v.view(cfg)
	vv.Eager = true
	return execute(videoMarkup, "preview", view{Theme: themeFrom(cfg), Data: vv})
}

func (v Video) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	vv := v.view(cfg)
	data := cfg.Clone()
	data["embed_url"] = vv.Embed
	return bundleParts(objectID, videoMarkup, view{Theme: themeFrom(cfg), Data: vv}, 720, videoCSS, videoProgram, data)
}

func (Video) view(cfg record.Record) videoView {
	v := videoView{Title: cfg.String("title"), Caption: cfg.String("caption")}
	raw := strings.TrimSpace(cfg.String("url"))
	if raw == "" {
		return v
	}
	embed, file := videoSource(raw)
	if file {
		v.File = raw
		return v
	}
	if embed != "" && cfg.Bool("autoplay") {
		embed = withAutoplay(embed)
	}
	v.Embed = embed
	return v
}

// withAutoplay adds autoplay=1 to the player URL, keeping any query it has.
func withAutoplay(embed string) string {
	u, err := url.Parse(embed)
	if err != nil {
		return embed
	}
	q := u.Query()
	q.Set("autoplay", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// videoSource maps a share link to its player URL. file is true when raw
// points at a media file; embed is "" when the link is not recognized.
func videoSource(raw string) (embed string, file bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")

	switch host {
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		id := u.Query().Get("v")
		for _, prefix := range []string{"embed/", "shorts/", "live/"} {
			if strings.HasPrefix(path, prefix) {
				id = strings.TrimPrefix(path, prefix)
			}
		}
		if videoIDPattern.MatchString(id) {
			return "https://www.youtube-nocookie.com/embed/" + id, false
		}
	case "youtu.be":
		if videoIDPattern.MatchString(path) {
			return "https://www.youtube-nocookie.com/embed/" + path, false
		}
	case "vimeo.com", "player.vimeo.com":
		id := path[strings.LastIndexByte(path, '/')+1:]
		if id != "" && strings.Trim(id, "0123456789") == "" {
			return "https://player.vimeo.com/video/" + id, false
		}
	}

	switch strings.ToLower(path[strings.LastIndexByte(path, '.')+1:]) {
	case "mp4", "webm", "ogg", "ogv", "mov", "m4v":
		return "", true
	}
	return raw, false
}
