// Package templates renders the HTML pages of the web UI as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// page writes HTML and keeps the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) rawf(format string, args ...any) {
	p.raw(fmt.Sprintf(format, args...))
}

// textf escapes the formatted result.
func (p *page) textf(format string, args ...any) {
	p.text(fmt.Sprintf(format, args...))
}

func (p *page) render(ctx context.Context, c templ.Component) {
	if p.err != nil {
		return
	}
	p.err = c.Render(ctx, p.w)
}

const styles = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin:1rem 0}
th,td{border:1px solid #d1d5db;padding:.25rem .5rem;text-align:left}
th{background:#f3f4f6}
.alert{border:1px solid #fca5a5;background:#fef2f2;padding:.75rem;margin:1rem 0}
.high{color:#b91c1c;font-weight:600}
.medium{color:#b45309}
.muted{color:#6b7280}
progress{width:20rem}`

// Layout wraps body in the common page chrome.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(` | AP duplicate check</title><style>`)
		p.raw(styles)
		p.raw(`</style></head><body><nav><a href="/">Recent analyses</a></nav><main>`)
		p.render(ctx, body)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<div class="alert" role="alert"><strong>`)
		p.text(message)
		p.raw(`</strong>`)
		if action != "" {
			p.raw(`<p>`)
			p.text(action)
			p.raw(`</p>`)
		}
		if code != "" {
			p.raw(`<p class="muted">Error code: `)
			p.text(code)
			p.raw(`</p>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}

// ErrorPage renders ErrorAlert as a full page.
func ErrorPage(message, action, code string) templ.Component {
	return Layout("Error", ErrorAlert(message, action, code))
}
