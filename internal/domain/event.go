package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawPosEvent es un registro ya decodificado de un canal serial. El framing
// de bytes y el handle del puerto viven fuera del bridge; acá llega JSON.
// Inmutable una vez recibido.
type RawPosEvent struct {
	Channel  string    `json:"-"`
	Received time.Time `json:"-"`

	CMD       string      `json:"CMD,omitempty"`
	Operation string      `json:"operation,omitempty"`
	DateTime  string      `json:"datetime,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Terminal  string      `json:"terminal,omitempty"`
	Sequence  string      `json:"sequence,omitempty"`
	Amount    json.Number `json:"amount,omitempty"`
	Operator  string      `json:"operator,omitempty"`

	MetaData *MetaData `json:"metaData,omitempty"`

	// Estos tres llegan a veces como array, a veces como objeto suelto y a
	// veces doblemente codificados (string con JSON adentro). Se decodifican
	// con DecodeCartChanges / DecodeSummaryLines.
	CartChangeTrail    json.RawMessage `json:"cartChangeTrail,omitempty"`
	PaymentSummary     json.RawMessage `json:"paymentSummary,omitempty"`
	TransactionSummary json.RawMessage `json:"transactionSummary,omitempty"`
}

// MetaData es el bloque de identificación que el POS emite dentro de una
// transacción abierta.
type MetaData struct {
	TimeStamp       string `json:"timeStamp,omitempty"`
	TerminalID      string `json:"terminalId,omitempty"`
	SequenceNumber  string `json:"sequenceNumber,omitempty"`
	StoreID         string `json:"storeId,omitempty"`
	OperatorID      string `json:"operatorId,omitempty"`
	OperatorName    string `json:"operatorName,omitempty"`
	Operation       string `json:"operation,omitempty"`
	TransactionType string `json:"transactionType,omitempty"`
}

// CartChange es una entrada del cartChangeTrail.
type CartChange struct {
	EventType string      `json:"eventType"`
	ItemName  string      `json:"itemName"`
	Price     json.Number `json:"price"`
	Quantity  json.Number `json:"quantity"`
}

// SummaryLine es una entrada de paymentSummary o transactionSummary:
// description ("CASH", "SUBTOTAL", "CHANGE"...) y details ("$12.34").
type SummaryLine struct {
	Description string `json:"description"`
	Details     string `json:"details"`
}

// DecodeCartChanges decodifica el cartChangeTrail en cualquiera de sus
// formas (array, objeto, string con JSON).
func DecodeCartChanges(raw json.RawMessage) ([]CartChange, error) {
	return decodeLoose[CartChange](raw)
}

// DecodeSummaryLines decodifica paymentSummary o transactionSummary.
func DecodeSummaryLines(raw json.RawMessage) ([]SummaryLine, error) {
	return decodeLoose[SummaryLine](raw)
}

func decodeLoose[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	// String con JSON adentro: desenvolver primero.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("unwrap string payload: %w", err)
		}
		raw = json.RawMessage(s)
		if len(raw) == 0 {
			return nil, nil
		}
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode fragment: %w", err)
	}
	return []T{one}, nil
}
