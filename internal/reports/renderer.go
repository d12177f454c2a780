package reports

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/web"
)

// PDFClient is the subset of the Gotenberg client the renderer uses.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// RenderResult carries a rendered document in both forms.
type RenderResult struct {
	HTML   string
	PDF    []byte
	Length int64
}

// Renderer turns report view models into PDFs via html/template + Gotenberg.
type Renderer struct {
	packetTpl     *template.Template
	disclosureTpl *template.Template
	client        PDFClient
}

// NewRenderer parses the report templates and wires the PDF client.
func NewRenderer(client PDFClient) (*Renderer, error) {
	if client == nil {
		return nil, fmt.Errorf("reports renderer: pdf client required")
	}
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatDecimal": func(v decimal.Decimal) string {
			return v.StringFixed(2)
		},
		"formatPercent": func(v decimal.Decimal) string {
			return v.StringFixed(2) + "%"
		},
	}
	packetTpl, err := template.New("board_packet.html").Funcs(funcMap).ParseFS(web.Templates, "templates/reports/board_packet.html")
	if err != nil {
		return nil, err
	}
	disclosureTpl, err := template.New("resale_disclosure.html").Funcs(funcMap).ParseFS(web.Templates, "templates/reports/resale_disclosure.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{packetTpl: packetTpl, disclosureTpl: disclosureTpl, client: client}, nil
}

// RenderBoardPacket executes the packet template and converts it to PDF.
func (r *Renderer) RenderBoardPacket(ctx context.Context, data BoardPacketData) (RenderResult, error) {
	return r.render(ctx, r.packetTpl, data)
}

// RenderResaleDisclosure executes the disclosure template and converts it to PDF.
func (r *Renderer) RenderResaleDisclosure(ctx context.Context, data ResaleDisclosureData) (RenderResult, error) {
	return r.render(ctx, r.disclosureTpl, data)
}

func (r *Renderer) render(ctx context.Context, tpl *template.Template, data any) (RenderResult, error) {
	if r == nil || tpl == nil || r.client == nil {
		return RenderResult{}, fmt.Errorf("reports renderer not initialised")
	}
	buf := &bytes.Buffer{}
	if err := tpl.Execute(buf, data); err != nil {
		return RenderResult{}, err
	}
	pdf, err := r.client.RenderHTML(ctx, buf.String())
	if err != nil {
		return RenderResult{}, err
	}
	return RenderResult{HTML: buf.String(), PDF: pdf, Length: int64(len(pdf))}, nil
}
