package classify

import (
	"testing"

	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/shopspring/decimal"
)

func item(name string, price float64) domain.Item {
	return domain.Item{Name: name, Price: decimal.NewFromFloat(price), Quantity: 1}
}

func TestClassify_DrawerCommands(t *testing.T) {
	cases := []struct {
		op   string
		want domain.TransactionKind
	}{
		{"nosale", domain.KindNoSale},
		{"NoSale", domain.KindNoSale},
		{"paidout", domain.KindPaidOut},
		{"cashdrop", domain.KindCashDrop},
		{"drop", domain.KindCashDrop},
	}
	for _, c := range cases {
		tx := &domain.LogicalTransaction{Operation: c.op}
		if got := Classify(tx); got != c.want {
			t.Fatalf("operation %q: got %v want %v", c.op, got, c.want)
		}
	}
}

func TestClassify_NegativePriceBeatsPromoAndVoid(t *testing.T) {
	// Precedencia: precio negativo clasifica refund aunque haya marcadores
	// de promo y voids presentes.
	tx := &domain.LogicalTransaction{
		Items: []domain.Item{
			item("PROMO 2x1 SODA", -1.50),
			item("SODA", 3.00),
		},
		Voids:   []domain.Item{item("CHIPS", 2.00)},
		Summary: map[string]decimal.Decimal{"DISCOUNT(S)": decimal.NewFromFloat(-1.50)},
	}
	if got := Classify(tx); got != domain.KindRefund {
		t.Fatalf("got %v want refund", got)
	}
}

func TestClassify_RefundByOperationHint(t *testing.T) {
	for _, hint := range []string{"refund", "Refund", "REFUND-partial"} {
		tx := &domain.LogicalTransaction{Operation: hint, Items: []domain.Item{item("GAS", 20.00)}}
		if got := Classify(tx); got != domain.KindRefund {
			t.Fatalf("operation %q: got %v want refund", hint, got)
		}
		tx = &domain.LogicalTransaction{Type: hint, Items: []domain.Item{item("GAS", 20.00)}}
		if got := Classify(tx); got != domain.KindRefund {
			t.Fatalf("type %q: got %v want refund", hint, got)
		}
	}
}

func TestClassify_Voids(t *testing.T) {
	full := &domain.LogicalTransaction{
		Voids: []domain.Item{item("A", 1.00), item("B", 2.00)},
	}
	if got := Classify(full); got != domain.KindVoidFull {
		t.Fatalf("full void: got %v", got)
	}

	partial := &domain.LogicalTransaction{
		Items: []domain.Item{item("A", 1.00), item("B", 2.00), item("C", 3.00)},
		Voids: []domain.Item{item("D", 4.00), item("E", 5.00)},
	}
	if got := Classify(partial); got != domain.KindVoidPartial {
		t.Fatalf("partial void: got %v", got)
	}
}

func TestClassify_Promo(t *testing.T) {
	byName := &domain.LogicalTransaction{
		Items: []domain.Item{item("PROMO COMBO", 5.00), item("SODA", 2.00)},
	}
	if got := Classify(byName); got != domain.KindPromo {
		t.Fatalf("promo by name: got %v", got)
	}

	byDiscount := &domain.LogicalTransaction{
		Items:   []domain.Item{item("SODA", 2.00)},
		Summary: map[string]decimal.Decimal{"DISCOUNT(S)": decimal.NewFromFloat(-0.50)},
	}
	if got := Classify(byDiscount); got != domain.KindPromo {
		t.Fatalf("promo by discount: got %v", got)
	}
}

func TestClassify_DefaultSale(t *testing.T) {
	tx := &domain.LogicalTransaction{
		Items:   []domain.Item{item("COFFEE", 1.99)},
		Summary: map[string]decimal.Decimal{"SUBTOTAL": decimal.NewFromFloat(1.99)},
	}
	if got := Classify(tx); got != domain.KindSale {
		t.Fatalf("got %v want sale", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	tx := &domain.LogicalTransaction{
		Items: []domain.Item{item("PROMO X", -0.99), item("Y", 4.00)},
	}
	first := Classify(tx)
	for i := 0; i < 10; i++ {
		if got := Classify(tx); got != first {
			t.Fatalf("classification not deterministic: %v vs %v", got, first)
		}
	}
}
