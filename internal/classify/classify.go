// Package classify asigna un TransactionKind a cada transacción completa.
//
// Las reglas se evalúan en orden fijo y la primera que matchea gana. El
// orden importa: un item con precio negativo dentro de una venta normal es
// refund aunque también haya marcador de promo, así que el chequeo de
// refund va antes que el de promo.
package classify

import (
	"strings"

	"github.com/dropDatabas3/posbridge/internal/domain"
)

// Classify es una función pura y total: toda transacción completa recibe
// exactamente un kind, nunca falla.
func Classify(tx *domain.LogicalTransaction) domain.TransactionKind {
	// 1. Comando de cajón explícito.
	switch strings.ToLower(strings.TrimSpace(tx.Operation)) {
	case "nosale":
		return domain.KindNoSale
	case "paidout":
		return domain.KindPaidOut
	case "cashdrop", "drop":
		return domain.KindCashDrop
	}

	// 2. Refund: item con precio negativo, o "refund" en operation/type.
	for _, it := range tx.Items {
		if it.Price.IsNegative() {
			return domain.KindRefund
		}
	}
	if containsRefund(tx.Operation) || containsRefund(tx.Type) {
		return domain.KindRefund
	}

	// 3 y 4. Voids: total se descarta upstream, parcial se envía como venta
	// reducida.
	if len(tx.Voids) > 0 {
		if tx.FullyVoided() {
			return domain.KindVoidFull
		}
		return domain.KindVoidPartial
	}

	// 5. Marcador de promoción.
	if tx.HasPromoMarker() {
		return domain.KindPromo
	}

	// 6. Venta estándar.
	return domain.KindSale
}

func containsRefund(s string) bool {
	return strings.Contains(strings.ToLower(s), "refund")
}
