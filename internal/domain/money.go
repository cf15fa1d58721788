package domain

import "github.com/shopspring/decimal"

// Money envuelve decimal.Decimal y serializa siempre con dos decimales
// usando redondeo bancario (half-even). El API remoto rechaza montos con
// más precisión, y half-up introduce drift en cierres de caja.
type Money struct {
	decimal.Decimal
}

// NewMoney crea un Money a partir de un decimal sin cuantizar todavía.
func NewMoney(d decimal.Decimal) Money {
	return Money{d}
}

// MoneyFromFloat convierte un float recibido del POS.
func MoneyFromFloat(f float64) Money {
	return Money{decimal.NewFromFloat(f)}
}

// Quantized retorna el valor redondeado a dos decimales (half-even).
func (m Money) Quantized() decimal.Decimal {
	return m.Decimal.RoundBank(2)
}

// MarshalJSON emite el monto como número con exactamente dos decimales.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Quantized().StringFixed(2)), nil
}

// UnmarshalJSON acepta número o string ("$12.34" no se acepta acá; eso
// lo limpia el correlator al parsear summaries).
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}
