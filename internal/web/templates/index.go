package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/apdupes/internal/store"
)

// IndexParams feeds the landing page.
type IndexParams struct {
	Runs            []store.RunSummary
	ActiveAnalyses  int
	MaxAnalyses     int
	DateWindowDays  int
	AmountTolerance string
}

var mappingInputs = []struct{ name, label string }{
	{"vendorId", "Vendor ID column"},
	{"vendorName", "Vendor name column"},
	{"invoiceNumber", "Invoice number column"},
	{"amount", "Amount column"},
	{"invoiceDate", "Invoice date column"},
	{"poNumber", "PO number column"},
	{"paymentReference", "Payment reference column"},
	{"bankAccount", "Bank account column"},
}

// IndexPage lists recent runs and offers a form to start a new analysis.
func IndexPage(params IndexParams) templ.Component {
	return Layout("Recent analyses", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}

		p.raw(`<h1>AP duplicate check</h1>`)
		p.rawf(`<p class="muted">%d of %d analysis slots in use</p>`, params.ActiveAnalyses, params.MaxAnalyses)

		p.raw(`<h2>New analysis</h2>`)
		p.raw(`<form method="post" action="/analyses" enctype="multipart/form-data">`)
		p.raw(`<p><label>Ledger CSV <input type="file" name="file" accept=".csv,text/csv" required></label></p>`)
		for _, in := range mappingInputs {
			p.raw(`<p><label>`)
			p.text(in.label)
			p.raw(` <input type="text" name="`)
			p.text(in.name)
			p.raw(`"></label></p>`)
		}
		p.raw(`<p><label>Date window (days) <input type="number" min="0" name="dateWindowDays" value="`)
		p.textf("%d", params.DateWindowDays)
		p.raw(`"></label></p>`)
		p.raw(`<p><label>Amount tolerance <input type="text" name="amountTolerance" value="`)
		p.text(params.AmountTolerance)
		p.raw(`"></label></p>`)
		p.raw(`<p><button type="submit">Analyze</button></p></form>`)

		p.raw(`<h2>Recent analyses</h2>`)
		if len(params.Runs) == 0 {
			p.raw(`<p class="muted">No analyses yet.</p>`)
			return p.err
		}

		p.raw(`<table><thead><tr><th>File</th><th>Status</th><th>Rows</th><th>Groups</th><th>Exposure</th><th>Started</th></tr></thead><tbody>`)
		for _, run := range params.Runs {
			p.raw(`<tr><td><a href="`)
			p.text(string(templ.URL("/analyses/" + run.ID)))
			p.raw(`">`)
			p.text(run.FileName)
			p.raw(`</a></td><td>`)
			p.text(string(run.Status))
			p.raw(`</td><td>`)
			p.textf("%d", run.TotalRows)
			p.raw(`</td><td>`)
			p.textf("%d", run.DuplicateGroups)
			p.raw(`</td><td>`)
			p.text(run.Exposure.StringFixed(2))
			p.raw(`</td><td>`)
			p.text(run.CreatedAt.Format("2006-01-02 15:04:05"))
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
		return p.err
	}))
}
