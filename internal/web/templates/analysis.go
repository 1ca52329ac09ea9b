package templates

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/apdupes/internal/detect"
)

// AnalysisParams feeds the report page of a finished analysis.
type AnalysisParams struct {
	ID         string
	FileName   string
	CreatedAt  time.Time
	DurationMs int64
	Error      string
	ErrorCode  string
	ErrorHint  string
	Report     *detect.Report
	RawHeaders []string
}

// ProgressParams feeds the page of a running analysis.
type ProgressParams struct {
	ID       string
	FileName string
	Stage    string
	Progress int
}

// AnalysisPage renders the summary and every duplicate group.
func AnalysisPage(params AnalysisParams) templ.Component {
	return Layout(params.FileName, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}

		p.raw(`<h1>`)
		p.text(params.FileName)
		p.raw(`</h1><p class="muted">Analysis `)
		p.text(params.ID)
		if !params.CreatedAt.IsZero() {
			p.raw(`, started `)
			p.text(params.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		}
		if params.DurationMs > 0 {
			p.textf(", took %d ms", params.DurationMs)
		}
		p.raw(`</p>`)

		if params.Report == nil {
			p.render(ctx, ErrorAlert(params.Error, params.ErrorHint, params.ErrorCode))
			return p.err
		}

		base := "/api/analyses/" + params.ID
		p.raw(`<p><a href="`)
		p.text(string(templ.URL(base + "/export.csv")))
		p.raw(`">Download CSV</a> | <a href="`)
		p.text(string(templ.URL(base + "/export.xlsx")))
		p.raw(`">Download Excel</a></p>`)

		s := params.Report.Summary
		p.raw(`<h2>Summary</h2><table><tbody>`)
		summaryRow(p, "Rows analyzed", s.TotalRows)
		summaryRow(p, "Duplicate groups", s.DuplicateGroups)
		summaryRow(p, "High confidence", s.ByConfidence.High)
		summaryRow(p, "Medium confidence", s.ByConfidence.Medium)
		p.raw(`<tr><th>Potential exposure</th><td>`)
		p.text(s.Exposure.StringFixed(2))
		p.raw(`</td></tr></tbody></table>`)

		if len(params.RawHeaders) > 0 {
			p.raw(`<p class="muted">Source columns: `)
			p.text(strings.Join(params.RawHeaders, ", "))
			p.raw(`</p>`)
		}

		p.raw(`<h2>Duplicate groups</h2>`)
		if len(params.Report.Groups) == 0 {
			p.raw(`<p>No duplicates found.</p>`)
			return p.err
		}
		for _, g := range params.Report.Groups {
			p.render(ctx, groupTable(g))
		}
		return p.err
	}))
}

func summaryRow(p *page, label string, n int) {
	p.raw(`<tr><th>`)
	p.text(label)
	p.raw(`</th><td>`)
	p.textf("%d", n)
	p.raw(`</td></tr>`)
}

func groupTable(g detect.Group) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}

		p.raw(`<section><h3 class="`)
		p.text(strings.ToLower(string(g.Confidence)))
		p.raw(`">`)
		p.text(g.ID)
		p.raw(` `)
		p.text(string(g.Confidence))
		p.raw(`</h3><p>`)
		p.text(g.Rule)
		p.raw(`</p><p class="muted">Total `)
		p.text(g.TotalAmount.StringFixed(2))
		p.raw(`, exposure `)
		p.text(g.Exposure.StringFixed(2))
		p.raw(`</p>`)

		p.raw(`<table><thead><tr><th>Row</th><th>Vendor</th><th>Invoice</th><th>Amount</th><th>Date</th><th>PO</th><th>Payment ref</th><th>Bank account</th></tr></thead><tbody>`)
		for _, r := range g.Rows {
			p.raw(`<tr><td>`)
			p.textf("%d", r.RowIndex)
			p.raw(`</td><td>`)
			p.text(r.Vendor)
			p.raw(`</td><td>`)
			p.text(r.InvoiceNumber)
			p.raw(`</td><td>`)
			p.text(amount(r.Amount))
			p.raw(`</td><td>`)
			p.text(r.InvoiceDate)
			p.raw(`</td><td>`)
			p.text(optional(r.PONumber))
			p.raw(`</td><td>`)
			p.text(optional(r.PaymentReference))
			p.raw(`</td><td>`)
			p.text(optional(r.BankAccount))
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table></section>`)
		return p.err
	})
}

// ProgressPage shows a running analysis and reloads when it ends.
func ProgressPage(params ProgressParams) templ.Component {
	return Layout(params.FileName, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}

		p.raw(`<h1>`)
		p.text(params.FileName)
		p.raw(`</h1><p id="stage">`)
		p.text(params.Stage)
		p.raw(`</p><progress id="progress" max="100" value="`)
		p.textf("%d", params.Progress)
		p.raw(`"></progress>`)
		p.raw(`<form method="post" action="`)
		p.text(string(templ.URL("/analyses/" + params.ID + "/cancel")))
		p.raw(`"><button type="submit">Cancel</button></form>`)

		p.raw(`<script>(function(){var es=new EventSource(`)
		p.raw(jsString("/analyses/" + params.ID + "/events"))
		p.raw(`);es.addEventListener("progress",function(e){var m=JSON.parse(e.data);`)
		p.raw(`document.getElementById("stage").textContent=m.stage;`)
		p.raw(`document.getElementById("progress").value=m.progress;});`)
		p.raw(`function done(){es.close();window.location.reload();}`)
		p.raw(`es.addEventListener("result",done);es.addEventListener("error",done);})();</script>`)
		return p.err
	}))
}

// jsString quotes s as a JavaScript string literal safe inside a script element.
func jsString(s string) string {
	return `"` + jsEscaper.Replace(s) + `"`
}

var jsEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `<`, `\u003c`, `>`, `\u003e`, "\n", `\n`)

func amount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
