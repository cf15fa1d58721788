package payload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/shopspring/decimal"
)

// TimeLayout es el formato fijo de timestamps que acepta el API (UTC, sin
// zona explícita).
const TimeLayout = "2006-01-02T15:04:05"

// DefaultOrderNumber es el sentinel que el API rechaza como OrderNumber.
const DefaultOrderNumber = 0

// ValidationError indica que el payload no pudo satisfacer los invariantes
// de campos requeridos. La transacción no se envía.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "payload validation: " + e.Reason
}

// Builder mapea (LogicalTransaction, TransactionKind) a una de las tres
// formas. Stateless; seguro para uso concurrente.
type Builder struct {
	// StoreID y LocationDesc fuerzan los valores aceptados por el entorno
	// (UAT exige un store válido y una descripción no vacía).
	StoreID      string
	LocationDesc string
}

// Build construye el payload para la transacción. Falla con
// *ValidationError si falta data para cumplir los invariantes. Un void
// total nunca llega acá: el pipeline lo descarta antes.
func (b *Builder) Build(tx *domain.LogicalTransaction, kind domain.TransactionKind) (Payload, error) {
	if tx.Pending {
		return nil, &ValidationError{Reason: "transaction still pending"}
	}
	if kind == domain.KindVoidFull {
		return nil, &ValidationError{Reason: "full void produces no payload"}
	}
	if tx.TsUTC == "" {
		return nil, &ValidationError{Reason: "missing UTC timestamp"}
	}

	guid := tx.GUID
	if guid == "" {
		guid = domain.DeriveGUID(b.storeID(tx), tx.Terminal, tx.Seq, tx.TsUTC)
	}

	switch {
	case kind.IsCashOperation():
		return b.buildCashOperation(tx, kind, guid)
	case kind == domain.KindRefund:
		return b.buildRefund(tx, guid)
	default:
		return b.buildTransaction(tx, kind, guid)
	}
}

func (b *Builder) storeID(tx *domain.LogicalTransaction) string {
	if b.StoreID != "" {
		return b.StoreID
	}
	return tx.Store
}

func (b *Builder) header(tx *domain.LogicalTransaction, guid string) EventHeader {
	loc := b.LocationDesc
	if loc == "" {
		loc = tx.LocationDesc
	}
	return EventHeader{
		TransactionGUID:          guid,
		TransactionDateTimeStamp: tx.TsUTC,
		TransactionType:          "New",
		BusinessDate:             businessDate(tx.TsUTC),
		Location:                 Location{LocationID: b.storeID(tx), Description: loc},
		TransactionDevice: Device{
			DeviceID:          tx.Terminal,
			DeviceDescription: "POS Terminal " + tx.Terminal,
		},
		Employee: Employee{
			EmployeeID:       tx.EmployeeID,
			EmployeeFullName: tx.EmployeeName,
		},
	}
}

func (b *Builder) buildCashOperation(tx *domain.LogicalTransaction, kind domain.TransactionKind, guid string) (Payload, error) {
	var opType string
	switch kind {
	case domain.KindNoSale:
		opType = "NoSale"
	case domain.KindPaidOut:
		opType = "PaidOut"
	case domain.KindCashDrop:
		opType = "Drop"
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("kind %s is not a cash operation", kind)}
	}
	return &CashOperationPayload{
		ModelName: "CashOperation",
		Event: CashOperationEvent{
			EventHeader: b.header(tx, guid),
			EventTypeCashOperation: EventTypeCashOperation{
				CashOperation: CashOperation{
					CashOperationType: ValueRef{Value: opType},
					Amount:            domain.NewMoney(tx.Amount),
				},
			},
		},
		kind: kind,
	}, nil
}

func (b *Builder) buildTransaction(tx *domain.LogicalTransaction, kind domain.TransactionKind, guid string) (Payload, error) {
	items := make([]OrderItem, 0, len(tx.Items))
	for i, it := range tx.Items {
		pid := fmt.Sprintf("PID%s_%d", tx.Seq, i+1)
		price := it.Price
		category := "General"
		if it.IsPromo() {
			category = "Promotion"
			// Promos con precio positivo van en negativo para que el API
			// las compute como descuento.
			if price.IsPositive() {
				price = price.Neg()
			}
		}
		items = append(items, orderItem(pid, it.Name, "Sale", category, price, it.Quantity, tx.TsUTC, "Added"))
	}

	totalDue := tx.TotalDue()
	payments := paymentEntries(tx, totalDue, false)

	tax := tx.TaxAmount()
	var taxArr []TaxEntry
	if tax.IsPositive() {
		taxArr = []TaxEntry{{Amount: domain.NewMoney(tax), Description: "Sales Tax"}}
	} else {
		taxArr = []TaxEntry{}
	}

	netItems := totalDue.Sub(tax)

	return &TransactionPayload{
		ModelName: "Transaction",
		Event: TransactionEvent{
			EventHeader: b.header(tx, guid),
			EventTypeOrder: EventTypeOrder{
				Order: Order{
					OrderID:        guid,
					OrderNumber:    orderNumber(tx.Seq, guid),
					OrderTime:      tx.TsUTC,
					OrderState:     "Closed",
					OrderItem:      items,
					Total:          OrderTotal{ItemPrice: domain.NewMoney(netItems), Tax: taxArr},
					OrderItemCount: len(items),
					Payment:        payments,
				},
			},
		},
		kind: kind,
	}, nil
}

func (b *Builder) buildRefund(tx *domain.LogicalTransaction, guid string) (Payload, error) {
	items := make([]OrderItem, 0, len(tx.Items))
	rawSub := decimal.Zero
	for i, it := range tx.Items {
		pid := fmt.Sprintf("%s_%d", tx.Seq, i+1)
		items = append(items, orderItem(pid, it.Name, "Refund", "Refund", it.Price, it.Quantity, tx.TsUTC, "Added"))
		rawSub = rawSub.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if len(items) == 0 {
		return nil, &ValidationError{Reason: "refund without items"}
	}

	payments := paymentEntries(tx, rawSub, true)
	refundTotal := decimal.Zero
	for _, p := range tx.Payments {
		refundTotal = refundTotal.Add(p.Amount)
	}
	if refundTotal.IsZero() {
		refundTotal = rawSub
	}

	return &RefundPayload{
		ModelName: "RefundTransaction",
		Event: RefundEvent{
			EventHeader: b.header(tx, guid),
			EventTypeRefund: EventTypeRefund{
				Refund: Refund{
					RefundTotal: domain.NewMoney(refundTotal),
					RefundTransactionType: RefundTransactionType{
						Order: Order{
							OrderID:        guid,
							OrderNumber:    orderNumber(tx.Seq, guid),
							OrderTime:      tx.TsUTC,
							OrderState:     "Closed",
							OrderItem:      items,
							Total:          OrderTotal{ItemPrice: domain.NewMoney(rawSub), Tax: []TaxEntry{}},
							OrderItemCount: len(items),
							Payment:        payments,
						},
					},
				},
			},
		},
	}, nil
}

func orderItem(pid, name, itemType, category string, price decimal.Decimal, qty int, ts, state string) OrderItem {
	if qty <= 0 {
		qty = 1
	}
	sku := SKU{ProductName: name, ProductCode: pid}
	return OrderItem{
		OrderItemState: []ItemState{{ItemState: ValueRef{Value: state}, Timestamp: ts}},
		MenuProduct: MenuProduct{
			MenuProductID: pid,
			Name:          name,
			MenuItem: []MenuItem{{
				ItemType:    itemType,
				Category:    category,
				ID:          pid + "_MI",
				Description: name,
				Pricing:     []Pricing{{Tax: []TaxEntry{}, ItemPrice: domain.NewMoney(price), Quantity: qty}},
				SKU:         sku,
			}},
			SKU: sku,
		},
	}
}

// paymentEntries arma el array de pagos. En un refund el monto negativo es
// la dirección del movimiento, no un rechazo: sale siempre Accepted y sin
// vuelto. Si la transacción no registró ningún pago, sintetiza un fallback
// cash por el total: el API exige al menos una entrada, no es opcional.
func paymentEntries(tx *domain.LogicalTransaction, total decimal.Decimal, refund bool) []PaymentEntry {
	out := make([]PaymentEntry, 0, len(tx.Payments))
	for _, p := range tx.Payments {
		if p.Amount.IsZero() {
			continue
		}
		status := "Accepted"
		change := p.Change
		if refund {
			change = decimal.Zero
		} else if p.Amount.IsNegative() {
			status = "Denied"
		}
		out = append(out, PaymentEntry{
			Timestamp:  tx.TsUTC,
			Status:     status,
			Amount:     domain.NewMoney(p.Amount),
			Change:     domain.NewMoney(change),
			TenderType: ValueRef{Value: MapTender(p.TenderType)},
		})
	}
	if len(out) == 0 {
		out = append(out, PaymentEntry{
			Timestamp:  tx.TsUTC,
			Status:     "Accepted",
			Amount:     domain.NewMoney(total),
			Change:     domain.NewMoney(decimal.Zero),
			TenderType: ValueRef{Value: "Cash"},
		})
	}
	return out
}

// orderNumber devuelve la secuencia del POS, o un sustituto estable
// derivado del GUID cuando la secuencia es el sentinel que el API rechaza.
func orderNumber(seq, guid string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(seq)); err == nil && n != DefaultOrderNumber && n > 0 {
		return n
	}
	hexs := strings.ReplaceAll(guid, "-", "")
	if len(hexs) < 8 {
		return 1000
	}
	v, err := strconv.ParseUint(hexs[:8], 16, 64)
	if err != nil {
		return 1000
	}
	return int(v%90000) + 1000
}

// MapTender normaliza la descripción de tender del POS al enum del API.
func MapTender(desc string) string {
	d := strings.ToUpper(desc)
	switch {
	case strings.Contains(d, "CASH"):
		return "Cash"
	case strings.Contains(d, "VISA"),
		strings.Contains(d, "MASTERCARD"),
		strings.Contains(d, "AMEX"),
		strings.Contains(d, "DISCOVER"):
		return "CreditCard"
	case strings.Contains(d, "DEBIT"):
		return "DebitCard"
	case strings.HasPrefix(d, "ACCT#"), strings.HasPrefix(d, "ACCOUNT"):
		return "AccountPayment"
	default:
		return "Other"
	}
}

func businessDate(tsUTC string) string {
	if len(tsUTC) < 10 {
		return ""
	}
	return strings.ReplaceAll(tsUTC[:10], "-", "")
}
