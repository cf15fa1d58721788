package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionKind es el tipo asignado por el clasificador. Exactamente uno
// por transacción completa; la asignación es determinística.
type TransactionKind int

const (
	KindSale TransactionKind = iota
	KindRefund
	KindNoSale
	KindPaidOut
	KindCashDrop
	KindVoidFull
	KindVoidPartial
	KindPromo
)

func (k TransactionKind) String() string {
	switch k {
	case KindSale:
		return "sale"
	case KindRefund:
		return "refund"
	case KindNoSale:
		return "nosale"
	case KindPaidOut:
		return "paidout"
	case KindCashDrop:
		return "cashdrop"
	case KindVoidFull:
		return "void-full"
	case KindVoidPartial:
		return "void-partial"
	case KindPromo:
		return "promo"
	default:
		return "unknown"
	}
}

// IsCashOperation indica si el kind va al endpoint de CashOperations.
func (k TransactionKind) IsCashOperation() bool {
	return k == KindNoSale || k == KindPaidOut || k == KindCashDrop
}

// Item es una línea de carrito ya normalizada.
type Item struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// IsPromo detecta líneas de promoción por nombre. El precio negativo se
// clasifica aparte (refund gana por precedencia).
func (i Item) IsPromo() bool {
	return strings.Contains(strings.ToUpper(i.Name), "PROMO")
}

// Payment es un pago registrado por el POS.
type Payment struct {
	TenderType string
	Amount     decimal.Decimal
	Change     decimal.Decimal
	IsCash     bool
}

// LogicalTransaction es la unidad de negocio: uno o más RawPosEvents
// fusionados. Mientras Pending sea true puede mutar (solo el correlator);
// al promoverse queda inmutable.
type LogicalTransaction struct {
	GUID    string
	Seq     string
	Channel string

	// Type es el hint de tipo que venía del POS ("refund", "standard-sale").
	Type string
	// Operation es el comando de cajón u operación explícita
	// ("nosale", "paidout", "cashdrop", "refund", ...).
	Operation string
	// Amount solo aplica a operaciones de cajón.
	Amount decimal.Decimal

	Store        string
	LocationDesc string
	Terminal     string
	EmployeeID   string
	EmployeeName string
	TsLocal      string
	TsUTC        string

	Items    []Item // líneas vigentes (lo anulado no está acá)
	Voids    []Item // líneas anuladas
	Payments []Payment
	Summary  map[string]decimal.Decimal

	Pending bool
	// FallbackPromoted marca que la promoción vino por timeout de ventana,
	// no por el segundo summary. Solo afecta logs y métricas.
	FallbackPromoted bool
}

// TotalDue devuelve el total a pagar: TOTAL DUE del summary si está, sino
// subtotal+descuentos+tax, sino la suma de items.
func (t *LogicalTransaction) TotalDue() decimal.Decimal {
	if v, ok := t.Summary["TOTAL DUE"]; ok {
		return v
	}
	sub, subOK := t.Summary["SUBTOTAL"]
	if subOK {
		total := sub
		if d, ok := t.Summary["DISCOUNT(S)"]; ok {
			total = total.Add(d)
		}
		total = total.Add(t.TaxAmount())
		return total
	}
	total := decimal.Zero
	for _, it := range t.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// TaxAmount busca la primera línea TAX* del summary.
func (t *LogicalTransaction) TaxAmount() decimal.Decimal {
	for k, v := range t.Summary {
		if strings.HasPrefix(k, "TAX") {
			return v
		}
	}
	return decimal.Zero
}

// PaidTotal suma los pagos positivos registrados.
func (t *LogicalTransaction) PaidTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.Payments {
		if p.Amount.IsPositive() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// FullyVoided indica que todo el carrito fue anulado: hay voids y no quedó
// ninguna línea vigente.
func (t *LogicalTransaction) FullyVoided() bool {
	return len(t.Voids) > 0 && len(t.Items) == 0
}

// HasPromoMarker indica promo por nombre de línea o por línea de descuento
// no nula en el summary.
func (t *LogicalTransaction) HasPromoMarker() bool {
	for _, it := range t.Items {
		if it.IsPromo() {
			return true
		}
	}
	if d, ok := t.Summary["DISCOUNT(S)"]; ok && !d.IsZero() {
		return true
	}
	return false
}
