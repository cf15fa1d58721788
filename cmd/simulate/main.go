// simulate genera un script de eventos POS (una línea JSON por evento)
// para probar el bridge de punta a punta sin registradora: ventas con
// tarjeta y efectivo (dos fases), refund, voids, promo y comandos de cajón.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

type event map[string]any

func main() {
	var (
		out      = flag.String("out", "-", "archivo destino (- = stdout)")
		store    = flag.String("store", "1001", "storeId a emitir en metaData")
		terminal = flag.String("terminal", "1", "terminalId")
	)
	flag.Parse()

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	base := time.Now().Add(-10 * time.Minute)
	ts := func(offset time.Duration) string {
		return base.Add(offset).Format("2006-01-02T15:04:05")
	}
	meta := func(seq string, offset time.Duration) event {
		return event{"metaData": event{
			"storeId": *store, "terminalId": *terminal, "sequenceNumber": seq,
			"operatorId": "OP5", "operatorName": "Operator Five",
			"timeStamp": ts(offset),
		}}
	}
	emit := func(ev event) {
		b, err := json.Marshal(ev)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintln(w, string(b))
	}

	// Venta con tarjeta: resuelve en el primer summary.
	emit(event{"CMD": "StartTransaction", "datetime": ts(0), "sequence": "000101"})
	emit(meta("000101", time.Second))
	emit(event{"cartChangeTrail": []event{
		{"eventType": "added", "itemName": "COFFEE LG", "price": "2.49", "quantity": "1"},
		{"eventType": "added", "itemName": "DONUT", "price": "1.79", "quantity": "2"},
	}})
	emit(event{"paymentSummary": []event{{"description": "VISA", "details": "$6.07"}}})
	emit(event{"transactionSummary": []event{
		{"description": "SUBTOTAL", "details": "$6.07"},
		{"description": "TAX1", "details": "$0.42"},
		{"description": "TOTAL DUE", "details": "$6.49"},
	}, "datetime": ts(5 * time.Second)})

	// Venta en efectivo: dos fases, el segundo summary refina el vuelto.
	emit(event{"CMD": "StartTransaction", "datetime": ts(time.Minute), "sequence": "000102"})
	emit(meta("000102", time.Minute+time.Second))
	emit(event{"cartChangeTrail": []event{
		{"eventType": "added", "itemName": "SANDWICH", "price": "4.99", "quantity": "1"},
	}})
	emit(event{"paymentSummary": []event{{"description": "CASH", "details": "$10.00"}}})
	emit(event{"transactionSummary": []event{
		{"description": "TOTAL DUE", "details": "$4.99"},
	}, "datetime": ts(time.Minute + 3*time.Second)})
	emit(event{"transactionSummary": []event{
		{"description": "TOTAL DUE", "details": "$4.99"},
		{"description": "CHANGE", "details": "$5.01"},
	}, "datetime": ts(time.Minute + 4*time.Second)})

	// Void parcial: una de dos líneas anulada.
	emit(event{"CMD": "StartTransaction", "datetime": ts(2 * time.Minute), "sequence": "000103"})
	emit(meta("000103", 2*time.Minute+time.Second))
	emit(event{"cartChangeTrail": []event{
		{"eventType": "added", "itemName": "SODA", "price": "1.99", "quantity": "1"},
		{"eventType": "added", "itemName": "CHIPS", "price": "2.29", "quantity": "1"},
		{"eventType": "voidLineItem", "itemName": "CHIPS", "price": "2.29", "quantity": "1"},
	}})
	emit(event{"paymentSummary": []event{{"description": "DEBIT", "details": "$1.99"}}})
	emit(event{"transactionSummary": []event{
		{"description": "TOTAL DUE", "details": "$1.99"},
	}, "datetime": ts(2*time.Minute + 5*time.Second)})

	// Refund por precio negativo.
	emit(event{"CMD": "StartTransaction", "datetime": ts(3 * time.Minute), "sequence": "000104"})
	emit(meta("000104", 3*time.Minute+time.Second))
	emit(event{"cartChangeTrail": []event{
		{"eventType": "added", "itemName": "MILK GAL", "price": "-3.89", "quantity": "1"},
	}})
	emit(event{"paymentSummary": []event{{"description": "CASH", "details": "$3.89"}}})
	emit(event{"transactionSummary": []event{
		{"description": "TOTAL DUE", "details": "-$3.89"},
		{"description": "CHANGE", "details": "$0.00"},
	}, "datetime": ts(3*time.Minute + 4*time.Second)})

	// Promo marcada en el nombre del item.
	emit(event{"CMD": "StartTransaction", "datetime": ts(4 * time.Minute), "sequence": "000105"})
	emit(meta("000105", 4*time.Minute+time.Second))
	emit(event{"cartChangeTrail": []event{
		{"eventType": "added", "itemName": "PIZZA SLICE", "price": "3.50", "quantity": "1"},
		{"eventType": "added", "itemName": "PROMO 2FOR1", "price": "1.75", "quantity": "1"},
	}})
	emit(event{"paymentSummary": []event{{"description": "MASTERCARD", "details": "$1.75"}}})
	emit(event{"transactionSummary": []event{
		{"description": "TOTAL DUE", "details": "$1.75"},
	}, "datetime": ts(4*time.Minute + 5*time.Second)})

	// Comandos de cajón.
	emit(event{"CMD": "NoSale", "datetime": ts(5 * time.Minute), "terminal": *terminal, "sequence": "000106", "amount": "0", "operator": "OP5"})
	emit(event{"CMD": "PaidOut", "datetime": ts(6 * time.Minute), "terminal": *terminal, "sequence": "000107", "amount": "25.00", "operator": "OP5"})
	emit(event{"CMD": "CashDrop", "datetime": ts(7 * time.Minute), "terminal": *terminal, "sequence": "000108", "amount": "200.00", "operator": "OP5"})
}
