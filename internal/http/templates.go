package http

import (
	"html/template"
	"strconv"
	"time"

	"kwitansi/internal/core"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"rupiah":      core.FormatRupiah,
		"rupiahPlain": core.FormatRupiahPlain,
		"formatDate":  core.FormatDate,
		"monthName":   func(m time.Month) string { return core.MonthName(m) },
		"statusLabel": core.StatusLabel,
		"fieldError":  core.FieldError,
		"receiptURL":  receiptURL,
		"itemField": func(i int, field string) string {
			return "items." + strconv.Itoa(i) + "." + field
		},
		"add": func(a, b int) int { return a + b },
		"digits": func(v any) string {
			switch n := v.(type) {
			case core.Money:
				return strconv.FormatInt(int64(n), 10)
			case int64:
				return strconv.FormatInt(n, 10)
			case int:
				return strconv.Itoa(n)
			}
			return "0"
		},
	}
}
