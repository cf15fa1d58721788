package payload

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testBuilder() *Builder {
	return &Builder{StoreID: "1001", LocationDesc: "Store 1001"}
}

func saleTx() *domain.LogicalTransaction {
	return &domain.LogicalTransaction{
		GUID:         "c9e1a1f0-0000-4000-8000-000000000001",
		Seq:          "4321",
		Channel:      "COM3",
		Store:        "1001",
		LocationDesc: "Store 1001",
		Terminal:     "3",
		EmployeeID:   "OP5",
		EmployeeName: "Operator Five",
		TsUTC:        "2025-06-01T14:30:00",
		Items: []domain.Item{
			{Name: "COFFEE", Price: decimal.NewFromFloat(1.99), Quantity: 1},
			{Name: "DONUT", Price: decimal.NewFromFloat(2.50), Quantity: 2},
		},
		Payments: []domain.Payment{
			{TenderType: "CASH", Amount: decimal.NewFromFloat(10.00), Change: decimal.NewFromFloat(3.01), IsCash: true},
		},
		Summary: map[string]decimal.Decimal{
			"SUBTOTAL":  decimal.NewFromFloat(6.99),
			"TOTAL DUE": decimal.NewFromFloat(6.99),
		},
	}
}

func TestBuild_SaleShape(t *testing.T) {
	p, err := testBuilder().Build(saleTx(), domain.KindSale)
	require.NoError(t, err)

	tp, ok := p.(*TransactionPayload)
	require.True(t, ok)
	require.Equal(t, "Transaction", tp.Model())
	require.Equal(t, "20250601", tp.Event.BusinessDate)
	require.Equal(t, 4321, tp.Event.EventTypeOrder.Order.OrderNumber)
	require.Len(t, tp.Event.EventTypeOrder.Order.OrderItem, 2)
	require.Equal(t, 2, tp.Event.EventTypeOrder.Order.OrderItemCount)
	require.Equal(t, "Cash", tp.Event.EventTypeOrder.Order.Payment[0].TenderType.Value)
}

func TestBuild_FallbackPaymentSynthesized(t *testing.T) {
	tx := saleTx()
	tx.Payments = nil

	p, err := testBuilder().Build(tx, domain.KindSale)
	require.NoError(t, err)

	order := p.(*TransactionPayload).Event.EventTypeOrder.Order
	require.Len(t, order.Payment, 1, "exactly one synthesized payment")
	require.Equal(t, "6.99", order.Payment[0].Amount.Quantized().StringFixed(2))
	require.Equal(t, "Cash", order.Payment[0].TenderType.Value)
	require.Equal(t, "Accepted", order.Payment[0].Status)
}

func TestBuild_OrderNumberSentinelSubstitution(t *testing.T) {
	tx := saleTx()
	tx.Seq = "0" // sentinel rechazado por el API

	b := testBuilder()
	p1, err := b.Build(tx, domain.KindSale)
	require.NoError(t, err)
	n1 := p1.(*TransactionPayload).Event.EventTypeOrder.Order.OrderNumber
	require.NotEqual(t, DefaultOrderNumber, n1)

	// El sustituto es estable entre builds repetidos.
	p2, err := b.Build(tx, domain.KindSale)
	require.NoError(t, err)
	n2 := p2.(*TransactionPayload).Event.EventTypeOrder.Order.OrderNumber
	require.Equal(t, n1, n2)
}

func TestBuild_GUIDDerivedWhenMissing(t *testing.T) {
	tx := saleTx()
	tx.GUID = ""

	b := testBuilder()
	p1, err := b.Build(tx, domain.KindSale)
	require.NoError(t, err)
	require.NotEmpty(t, p1.GUID())

	p2, err := b.Build(tx, domain.KindSale)
	require.NoError(t, err)
	require.Equal(t, p1.GUID(), p2.GUID(), "derivation must be deterministic")
}

func TestBuild_MoneyQuantizationHalfEven(t *testing.T) {
	tx := saleTx()
	tx.Payments = []domain.Payment{
		{TenderType: "CASH", Amount: decimal.NewFromFloat(10.005)},
	}

	p, err := testBuilder().Build(tx, domain.KindSale)
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"Amount":10.00`, "half-even: 10.005 -> 10.00")
	require.NotContains(t, string(raw), `"Amount":10.01`)
}

func TestBuild_RefundModelField(t *testing.T) {
	tx := saleTx()
	tx.Items = []domain.Item{{Name: "GAS REFUND", Price: decimal.NewFromFloat(-20.00), Quantity: 1}}
	tx.Payments = []domain.Payment{{TenderType: "CASH", Amount: decimal.NewFromFloat(-20.00)}}

	p, err := testBuilder().Build(tx, domain.KindRefund)
	require.NoError(t, err)
	require.Equal(t, "RefundTransaction", p.Model())

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &top))
	require.Contains(t, top, "model", "model field must live at the envelope top level")
	require.Equal(t, `"RefundTransaction"`, string(top["model"]))
}

func TestBuild_RefundPaymentsAlwaysAccepted(t *testing.T) {
	tx := saleTx()
	tx.Items = []domain.Item{{Name: "GAS REFUND", Price: decimal.NewFromFloat(-20.00), Quantity: 1}}
	tx.Payments = []domain.Payment{
		{TenderType: "CASH", Amount: decimal.NewFromFloat(-20.00), Change: decimal.NewFromFloat(3.01)},
	}

	p, err := testBuilder().Build(tx, domain.KindRefund)
	require.NoError(t, err)

	order := p.(*RefundPayload).Event.EventTypeRefund.Refund.RefundTransactionType.Order
	require.Len(t, order.Payment, 1)
	// El signo negativo es la dirección del movimiento, no un rechazo.
	require.Equal(t, "Accepted", order.Payment[0].Status)
	require.Equal(t, "0.00", order.Payment[0].Change.Quantized().StringFixed(2))

	// En una venta normal, un monto negativo sí sale Denied.
	sale := saleTx()
	sale.Payments = []domain.Payment{{TenderType: "VISA", Amount: decimal.NewFromFloat(-5.00)}}
	ps, err := testBuilder().Build(sale, domain.KindSale)
	require.NoError(t, err)
	salePay := ps.(*TransactionPayload).Event.EventTypeOrder.Order.Payment
	require.Equal(t, "Denied", salePay[0].Status)
}

func TestBuild_FullVoidRejected(t *testing.T) {
	tx := saleTx()
	tx.Items = nil
	tx.Voids = []domain.Item{{Name: "A", Price: decimal.NewFromFloat(1.00), Quantity: 1}}

	_, err := testBuilder().Build(tx, domain.KindVoidFull)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuild_PendingRejected(t *testing.T) {
	tx := saleTx()
	tx.Pending = true
	_, err := testBuilder().Build(tx, domain.KindSale)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuild_CashOperation(t *testing.T) {
	tx := &domain.LogicalTransaction{
		GUID:      "c9e1a1f0-0000-4000-8000-000000000002",
		Seq:       "77",
		Terminal:  "4",
		Operation: "paidout",
		Amount:    decimal.NewFromFloat(50.00),
		TsUTC:     "2025-06-01T15:00:00",
	}
	p, err := testBuilder().Build(tx, domain.KindPaidOut)
	require.NoError(t, err)

	cp := p.(*CashOperationPayload)
	require.Equal(t, "CashOperation", cp.Model())
	require.Equal(t, "PaidOut", cp.Event.EventTypeCashOperation.CashOperation.CashOperationType.Value)

	raw, err := json.Marshal(cp)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"Amount":50.00`)
	// El cash op no lleva items.
	require.False(t, strings.Contains(string(raw), "OrderItem"))
}

func TestBuild_PromoPricesForcedNegative(t *testing.T) {
	tx := saleTx()
	tx.Items = []domain.Item{
		{Name: "PROMO COMBO", Price: decimal.NewFromFloat(1.50), Quantity: 1},
		{Name: "SODA", Price: decimal.NewFromFloat(2.00), Quantity: 1},
	}

	p, err := testBuilder().Build(tx, domain.KindPromo)
	require.NoError(t, err)
	order := p.(*TransactionPayload).Event.EventTypeOrder.Order
	promo := order.OrderItem[0].MenuProduct.MenuItem[0]
	require.Equal(t, "Promotion", promo.Category)
	require.True(t, promo.Pricing[0].ItemPrice.IsNegative())
}

func TestMapTender(t *testing.T) {
	cases := map[string]string{
		"CASH":          "Cash",
		"cash tendered": "Cash",
		"VISA":          "CreditCard",
		"MASTERCARD":    "CreditCard",
		"AMEX":          "CreditCard",
		"DISCOVER":      "CreditCard",
		"DEBIT":         "DebitCard",
		"ACCT#123":      "AccountPayment",
		"ACCOUNT 9":     "AccountPayment",
		"GIFT CARD":     "Other",
	}
	for in, want := range cases {
		if got := MapTender(in); got != want {
			t.Fatalf("MapTender(%q) = %q, want %q", in, got, want)
		}
	}
}
