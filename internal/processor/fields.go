// Package processor holds the extraction collaborators the router dispatches
// to: prebuilt-model extraction, LLM field agents and an external MCP agent.
package processor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical invoice field keys produced by every collaborator.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldDueDate       = "due_date"
	FieldVendorName    = "vendor_name"
	FieldTotalAmount   = "total_amount"
	FieldTaxAmount     = "tax_amount"
	FieldSubtotal      = "subtotal"
	FieldCustomerName  = "customer_name"
	FieldPurchaseOrder = "purchase_order"
	FieldCurrency      = "currency"
)

// DefaultFields is the field set the multi-agent path extracts.
var DefaultFields = []string{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldDueDate,
	FieldVendorName,
	FieldCustomerName,
	FieldPurchaseOrder,
	FieldSubtotal,
	FieldTaxAmount,
	FieldTotalAmount,
	FieldCurrency,
}

// prebuiltFieldNames maps prebuilt-invoice field names to canonical keys.
var prebuiltFieldNames = map[string]string{
	"InvoiceId":     FieldInvoiceNumber,
	"InvoiceDate":   FieldInvoiceDate,
	"DueDate":       FieldDueDate,
	"VendorName":    FieldVendorName,
	"CustomerName":  FieldCustomerName,
	"PurchaseOrder": FieldPurchaseOrder,
	"SubTotal":      FieldSubtotal,
	"TotalTax":      FieldTaxAmount,
	"InvoiceTotal":  FieldTotalAmount,
}

// CanonicalField returns the canonical key for a field name from either a
// prebuilt model ("InvoiceTotal") or an already canonical source.
func CanonicalField(name string) string {
	if c, ok := prebuiltFieldNames[name]; ok {
		return c
	}
	return strings.ToLower(strings.TrimSpace(name))
}

var (
	amountFields = map[string]bool{FieldTotalAmount: true, FieldTaxAmount: true, FieldSubtotal: true}
	dateFields   = map[string]bool{FieldInvoiceDate: true, FieldDueDate: true}

	nonNumeric = regexp.MustCompile(`[^0-9.\-]`)
	multiSpace = regexp.MustCompile(`\s{2,}`)

	dateLayouts = []string{
		"2006-01-02",
		"01/02/2006",
		"1/2/2006",
		"02.01.2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"2006/01/02",
	}
)

// NormalizeValue coerces a raw field value to its canonical form: amounts
// become float64, dates become YYYY-MM-DD strings and other strings have
// their whitespace collapsed. Values that cannot be coerced are returned
// trimmed but otherwise unchanged.
func NormalizeValue(field string, v any) any {
	switch {
	case amountFields[field]:
		if f, ok := toAmount(v); ok {
			return f
		}
	case dateFields[field]:
		if s, ok := v.(string); ok {
			if d, ok := parseDate(s); ok {
				return d
			}
		}
	}
	if s, ok := v.(string); ok {
		return multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
	}
	return v
}

func toAmount(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case map[string]any:
		// Currency objects carry an amount member.
		return toAmount(x["amount"])
	case string:
		s := strings.TrimSpace(x)
		neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
		// European style "1.234,56" swaps the separators.
		if i, j := strings.LastIndex(s, ","), strings.LastIndex(s, "."); i > j && len(s)-i == 3 {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
		s = nonNumeric.ReplaceAllString(s, "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if neg {
			f = -math.Abs(f)
		}
		return f, true
	}
	return 0, false
}

func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
