// Package receipt renders a recorded sale as a plain-text slip.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"stroymarket/pos/internal/domain"
)

const slip = `{{ .StoreName }}
{{ rule }}
Chek: {{ .R.ReceiptID }}
Sana: {{ .R.CreatedAt.Format "2006-01-02 15:04:05" }}
{{- if .R.BranchName }}
Filial: {{ .R.BranchName }}
{{- end }}
{{- if .R.CustomerName }}
Mijoz: {{ .R.CustomerName }}
{{- end }}
{{ rule }}
{{- range .R.Items }}
{{ name . }}
  {{ .Quantity }} x {{ money .PriceCents }} = {{ money .TotalCents }}
{{- end }}
{{ rule }}
{{- if gt .R.DiscountCents 0 }}
Chegirma: {{ money .R.DiscountCents }}
{{- end }}
JAMI: {{ money .R.TotalCents }}
To'lov: {{ .R.PaymentMethod }}
`

var tmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": FormatMoney,
	"rule":  func() string { return strings.Repeat("-", 32) },
	"name": func(l domain.ReceiptLine) string {
		if l.ProductName != "" {
			return l.ProductName
		}
		return "#" + l.ProductID
	},
}).Parse(slip))

type Printer struct {
	StoreName string
}

func (p Printer) Render(w io.Writer, r domain.Receipt) error {
	data := struct {
		StoreName string
		R         domain.Receipt
	}{StoreName: p.StoreName, R: r}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render receipt %s: %w", r.ReceiptID, err)
	}
	return nil
}

// FormatMoney prints cents with a space as thousands separator, e.g. "1 250.50".
func FormatMoney(cents int64) string {
	s := decimal.New(cents, -2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, ch := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(ch)
	}
	return sign + b.String() + "." + frac
}
