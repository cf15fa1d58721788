// Package payload construye el objeto saliente para el Data API a partir de
// una transacción lógica ya clasificada. Tres formas fijas (Transaction,
// CashOperation, RefundTransaction); nada de mapas abiertos.
package payload

import "github.com/dropDatabas3/posbridge/internal/domain"

// Payload es la unidad que se entrega al dispatcher. Inmutable una vez
// construido.
type Payload interface {
	Kind() domain.TransactionKind
	Model() string
	GUID() string
}

// ValueRef envuelve los enums estilo {"value": "..."} del API remoto.
type ValueRef struct {
	Value string `json:"value"`
}

type Location struct {
	LocationID  string `json:"LocationID"`
	Description string `json:"Description"`
}

type Device struct {
	DeviceID          string `json:"DeviceID"`
	DeviceDescription string `json:"DeviceDescription"`
}

type Employee struct {
	EmployeeID       string `json:"EmployeeID"`
	EmployeeFullName string `json:"EmployeeFullName"`
}

// TaxEntry: el sub-modelo de tax exige 'amount' y 'Description' (sic, la
// inconsistencia de mayúsculas es del API).
type TaxEntry struct {
	Amount      domain.Money `json:"amount"`
	Description string       `json:"Description"`
}

type ItemState struct {
	ItemState ValueRef `json:"ItemState"`
	Timestamp string   `json:"Timestamp"`
}

type SKU struct {
	ProductName string `json:"productName"`
	ProductCode string `json:"productCode"`
}

type Pricing struct {
	Tax       []TaxEntry   `json:"Tax"`
	ItemPrice domain.Money `json:"ItemPrice"`
	Quantity  int          `json:"Quantity"`
}

type MenuItem struct {
	ItemType    string    `json:"ItemType"`
	Category    string    `json:"Category"`
	ID          string    `json:"iD"`
	Description string    `json:"Description"`
	Pricing     []Pricing `json:"Pricing"`
	SKU         SKU       `json:"SKU"`
}

type MenuProduct struct {
	MenuProductID string     `json:"menuProductID"`
	Name          string     `json:"name"`
	MenuItem      []MenuItem `json:"MenuItem"`
	SKU           SKU        `json:"SKU"`
}

type OrderItem struct {
	OrderItemState []ItemState `json:"OrderItemState"`
	MenuProduct    MenuProduct `json:"MenuProduct"`
}

type OrderTotal struct {
	ItemPrice domain.Money `json:"ItemPrice"`
	Tax       []TaxEntry   `json:"Tax"`
}

type PaymentEntry struct {
	Timestamp  string       `json:"Timestamp"`
	Status     string       `json:"Status"`
	Amount     domain.Money `json:"Amount"`
	Change     domain.Money `json:"Change"`
	TenderType ValueRef     `json:"TenderType"`
}

type Order struct {
	OrderID        string         `json:"OrderID"`
	OrderNumber    int            `json:"OrderNumber"`
	OrderTime      string         `json:"OrderTime"`
	OrderState     string         `json:"OrderState"`
	OrderItem      []OrderItem    `json:"OrderItem"`
	Total          OrderTotal     `json:"Total"`
	OrderItemCount int            `json:"OrderItemCount"`
	Payment        []PaymentEntry `json:"Payment"`
}

// EventHeader es la cabecera común a los tres eventos.
type EventHeader struct {
	TransactionGUID          string   `json:"TransactionGUID"`
	TransactionDateTimeStamp string   `json:"TransactionDateTimeStamp"`
	TransactionType          string   `json:"TransactionType"`
	BusinessDate             string   `json:"BusinessDate"`
	Location                 Location `json:"Location"`
	TransactionDevice        Device   `json:"TransactionDevice"`
	Employee                 Employee `json:"Employee"`
}

// ---- Transaction ----

type TransactionPayload struct {
	ModelName string           `json:"model"`
	Event     TransactionEvent `json:"Event"`

	kind domain.TransactionKind
}

type TransactionEvent struct {
	EventHeader
	EventTypeOrder EventTypeOrder `json:"EventTypeOrder"`
}

type EventTypeOrder struct {
	Order Order `json:"Order"`
}

func (p *TransactionPayload) Kind() domain.TransactionKind { return p.kind }
func (p *TransactionPayload) Model() string                { return p.ModelName }
func (p *TransactionPayload) GUID() string                 { return p.Event.TransactionGUID }

// ---- CashOperation ----

type CashOperationPayload struct {
	ModelName string             `json:"model"`
	Event     CashOperationEvent `json:"Event"`

	kind domain.TransactionKind
}

type CashOperationEvent struct {
	EventHeader
	EventTypeCashOperation EventTypeCashOperation `json:"EventTypeCashOperation"`
}

type EventTypeCashOperation struct {
	CashOperation CashOperation `json:"CashOperation"`
}

type CashOperation struct {
	CashOperationType ValueRef     `json:"CashOperationType"`
	Amount            domain.Money `json:"Amount"`
	Reason            string       `json:"Reason,omitempty"`
}

func (p *CashOperationPayload) Kind() domain.TransactionKind { return p.kind }
func (p *CashOperationPayload) Model() string                { return p.ModelName }
func (p *CashOperationPayload) GUID() string                 { return p.Event.TransactionGUID }

// ---- RefundTransaction ----

// RefundPayload fija 'model' explícitamente en el envelope: el API lo
// espera al tope (RefundTransaction), no hereda la posición del payload de
// transacción estándar.
type RefundPayload struct {
	ModelName string      `json:"model"`
	Event     RefundEvent `json:"Event"`
}

type RefundEvent struct {
	EventHeader
	EventTypeRefund EventTypeRefund `json:"EventTypeRefund"`
}

type EventTypeRefund struct {
	Refund Refund `json:"Refund"`
}

type Refund struct {
	RefundTotal           domain.Money          `json:"RefundTotal"`
	RefundTransactionType RefundTransactionType `json:"RefundTransactionType"`
}

type RefundTransactionType struct {
	Order Order `json:"Order"`
}

func (p *RefundPayload) Kind() domain.TransactionKind { return domain.KindRefund }
func (p *RefundPayload) Model() string                { return p.ModelName }
func (p *RefundPayload) GUID() string                 { return p.Event.TransactionGUID }
