// Package correlate agrupa los RawPosEvents que son fases de una misma
// transacción lógica. La mayoría resuelve a una transacción completa en el
// momento; los pagos en efectivo pueden quedar pendientes esperando el
// segundo summary que refina el vuelto.
package correlate

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/dropDatabas3/posbridge/internal/metrics"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
)

const timeLayout = "2006-01-02T15:04:05"

// Config del correlator.
type Config struct {
	// StoreID se usa cuando el metaData no trae storeId.
	StoreID string
	// LocationDesc acompaña a cada transacción construida.
	LocationDesc string
	// Timezone local del POS para normalizar timestamps a UTC.
	Timezone string
	// PendingWindow acota cuánto espera una transacción cash por su
	// segundo summary antes de promoverse como está.
	PendingWindow time.Duration
	// Defaults de operador cuando el POS no lo reporta.
	DefaultEmployeeID   string
	DefaultEmployeeName string
}

// Correlator mantiene el buffer de armado por canal y la tabla de
// pendientes por GUID. Los dos canales pueden tocar el mismo GUID, así que
// todo acceso va serializado bajo mu.
type Correlator struct {
	cfg Config
	loc *time.Location
	log *zap.Logger

	mu        sync.Mutex
	buffers   map[string]*assembly
	pending   map[string]*pendingEntry
	byChannel map[string]string // canal -> GUID pendiente

	// onComplete recibe las promociones por timeout. Corre fuera del lock
	// para no bloquear la ingesta de eventos no relacionados.
	onComplete func(*domain.LogicalTransaction)

	now func() time.Time
}

type assembly struct {
	meta               *domain.MetaData
	operation          string
	items              []domain.Item
	voids              []domain.Item
	payments           []domain.Payment
	summary            map[string]decimal.Decimal
	awaitingCashChange bool
}

type pendingEntry struct {
	tx    *domain.LogicalTransaction
	timer *time.Timer
}

// New crea el correlator. onComplete puede ser nil si nadie consume las
// promociones por timeout (solo tests).
func New(cfg Config, onComplete func(*domain.LogicalTransaction)) *Correlator {
	if cfg.PendingWindow <= 0 {
		cfg.PendingWindow = 5 * time.Second
	}
	if cfg.DefaultEmployeeID == "" {
		cfg.DefaultEmployeeID = "OP5"
	}
	if cfg.DefaultEmployeeName == "" {
		cfg.DefaultEmployeeName = "Operator Five"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Correlator{
		cfg:        cfg,
		loc:        loc,
		log:        logger.Named("correlate"),
		buffers:    make(map[string]*assembly),
		pending:    make(map[string]*pendingEntry),
		byChannel:  make(map[string]string),
		onComplete: onComplete,
		now:        time.Now,
	}
}

// PendingCount expone cuántas transacciones esperan su segunda fase.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Ingest procesa un evento. Retorna la transacción lógica completa cuando
// el evento la cierra, o nil mientras falte correlación.
func (c *Correlator) Ingest(ev *domain.RawPosEvent) (*domain.LogicalTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Comandos de cajón: vienen como comando directo, sin transacción.
	switch ev.CMD {
	case "NoSale", "PaidOut", "CashDrop":
		return c.drawerTransaction(ev), nil
	case "StartTransaction":
		c.buffers[ev.Channel] = &assembly{
			operation: ev.Operation,
			summary:   make(map[string]decimal.Decimal),
		}
		return nil, nil
	}

	buf := c.buffers[ev.Channel]
	if buf == nil {
		// Sin transacción abierta: un transactionSummary suelto puede ser
		// la segunda fase de una cash pendiente de este canal.
		if len(ev.TransactionSummary) > 0 {
			return c.secondPhase(ev)
		}
		return nil, nil
	}

	switch {
	case ev.MetaData != nil:
		buf.meta = ev.MetaData
		if op := ev.MetaData.Operation; op != "" {
			buf.operation = op
		}
		return nil, nil

	case len(ev.CartChangeTrail) > 0:
		changes, err := domain.DecodeCartChanges(ev.CartChangeTrail)
		if err != nil {
			return nil, err
		}
		for _, ch := range changes {
			buf.apply(ch)
		}
		return nil, nil

	case len(ev.PaymentSummary) > 0:
		lines, err := domain.DecodeSummaryLines(ev.PaymentSummary)
		if err != nil {
			return nil, err
		}
		// Reemplazo completo: el POS reemite el summary entero.
		buf.payments = buf.payments[:0]
		buf.awaitingCashChange = false
		for _, ln := range lines {
			amt, ok := parseDollar(ln.Details)
			if !ok {
				continue
			}
			isCash := strings.EqualFold(strings.TrimSpace(ln.Description), "CASH")
			buf.payments = append(buf.payments, domain.Payment{
				TenderType: ln.Description,
				Amount:     amt,
				IsCash:     isCash,
			})
			if isCash {
				buf.awaitingCashChange = true
			}
		}
		return nil, nil

	case len(ev.TransactionSummary) > 0:
		lines, err := domain.DecodeSummaryLines(ev.TransactionSummary)
		if err != nil {
			return nil, err
		}
		for _, ln := range lines {
			key := strings.ToUpper(strings.TrimSpace(ln.Description))
			if key == "" {
				continue
			}
			if v, ok := parseDollar(ln.Details); ok {
				buf.summary[key] = v
			}
		}
		return c.closeAssembly(ev, buf), nil
	}

	return nil, nil
}

// apply incorpora un cambio de carrito. Una anulación consume la línea
// agregada que matchea por nombre; si el POS solo emitió el void, la línea
// va directo a voids.
func (a *assembly) apply(ch domain.CartChange) {
	price, _ := decimal.NewFromString(ch.Price.String())
	qty := 1
	if n, err := ch.Quantity.Int64(); err == nil && n > 0 {
		qty = int(n)
	}
	it := domain.Item{Name: ch.ItemName, Price: price, Quantity: qty}

	if ch.EventType != "voidLineItem" {
		a.items = append(a.items, it)
		return
	}
	for i, existing := range a.items {
		if existing.Name == it.Name {
			a.items = append(a.items[:i], a.items[i+1:]...)
			a.voids = append(a.voids, existing)
			return
		}
	}
	a.voids = append(a.voids, it)
}

// closeAssembly convierte el buffer en LogicalTransaction. Si hay pago
// cash queda pendiente esperando el segundo summary; sino se retorna
// completa.
func (c *Correlator) closeAssembly(ev *domain.RawPosEvent, buf *assembly) *domain.LogicalTransaction {
	meta := buf.meta
	if meta == nil {
		meta = &domain.MetaData{}
	}

	tsLocal := meta.TimeStamp
	if tsLocal == "" {
		tsLocal = ev.Timestamp
	}
	if tsLocal == "" {
		tsLocal = c.now().In(c.loc).Format(timeLayout)
	}
	tsUTC := c.toUTC(tsLocal)

	terminal := meta.TerminalID
	if terminal == "" {
		terminal = channelTerminal(ev.Channel)
	}
	seq := meta.SequenceNumber
	if seq == "" {
		seq = "0"
	}
	store := meta.StoreID
	if store == "" {
		store = c.cfg.StoreID
	}

	tx := &domain.LogicalTransaction{
		GUID:         domain.DeriveGUID(store, terminal, seq, tsUTC),
		Seq:          seq,
		Channel:      ev.Channel,
		Type:         meta.TransactionType,
		Operation:    buf.operation,
		Store:        store,
		LocationDesc: c.cfg.LocationDesc,
		Terminal:     terminal,
		EmployeeID:   orDefault(meta.OperatorID, c.cfg.DefaultEmployeeID),
		EmployeeName: orDefault(meta.OperatorName, c.cfg.DefaultEmployeeName),
		TsLocal:      tsLocal,
		TsUTC:        tsUTC,
		Items:        buf.items,
		Voids:        buf.voids,
		Payments:     buf.payments,
		Summary:      buf.summary,
	}

	delete(c.buffers, ev.Channel)

	if !buf.awaitingCashChange {
		return tx
	}

	// Cash: el primer summary puede traer vuelto aproximado o ninguno.
	// Parquear y esperar el segundo summary del mismo canal.
	tx.Pending = true
	guid := tx.GUID
	entry := &pendingEntry{tx: tx}
	entry.timer = time.AfterFunc(c.cfg.PendingWindow, func() { c.promoteExpired(guid) })
	c.pending[guid] = entry
	c.byChannel[ev.Channel] = guid
	metrics.PendingOpen.Inc()
	c.log.Debug("cash transaction parked",
		logger.GUID(guid), logger.Channel(ev.Channel),
		zap.Duration("window", c.cfg.PendingWindow))
	return nil
}

// secondPhase intenta casar un transactionSummary suelto con la pendiente
// del canal. Refina el vuelto del pago cash y promueve.
func (c *Correlator) secondPhase(ev *domain.RawPosEvent) (*domain.LogicalTransaction, error) {
	guid, ok := c.byChannel[ev.Channel]
	if !ok {
		return nil, nil
	}
	entry, ok := c.pending[guid]
	if !ok {
		delete(c.byChannel, ev.Channel)
		return nil, nil
	}

	lines, err := domain.DecodeSummaryLines(ev.TransactionSummary)
	if err != nil {
		return nil, err
	}

	tx := entry.tx
	change, haveChange := decimal.Decimal{}, false
	for _, ln := range lines {
		if strings.EqualFold(strings.TrimSpace(ln.Description), "CHANGE") {
			if v, ok := parseDollar(ln.Details); ok {
				change, haveChange = v, true
			}
		}
	}
	if !haveChange {
		// Sin línea CHANGE: recomputar exacto como pagado - total.
		change = tx.PaidTotal().Sub(tx.TotalDue())
		if change.IsNegative() {
			change = decimal.Zero
		}
	}
	for i := range tx.Payments {
		if tx.Payments[i].IsCash {
			tx.Payments[i].Change = change
			break
		}
	}

	entry.timer.Stop()
	delete(c.pending, guid)
	delete(c.byChannel, ev.Channel)
	tx.Pending = false
	metrics.PendingResolved.WithLabelValues("matched").Inc()
	c.log.Debug("cash change refined", logger.GUID(guid), zap.String("change", change.StringFixed(2)))
	return tx, nil
}

// promoteExpired corre en el timer: promueve la pendiente como está
// (mejor esfuerzo). Nunca bloquea la ingesta; el lock se suelta antes de
// entregar la transacción.
func (c *Correlator) promoteExpired(guid string) {
	c.mu.Lock()
	entry, ok := c.pending[guid]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, guid)
	for ch, g := range c.byChannel {
		if g == guid {
			delete(c.byChannel, ch)
		}
	}
	tx := entry.tx
	tx.Pending = false
	tx.FallbackPromoted = true
	c.mu.Unlock()

	metrics.PendingResolved.WithLabelValues("fallback").Inc()
	c.log.Info("pending window elapsed, promoting as-is",
		logger.GUID(guid), logger.Channel(tx.Channel))
	if c.onComplete != nil {
		c.onComplete(tx)
	}
}

// drawerTransaction arma la transacción inmediata de un comando de cajón.
func (c *Correlator) drawerTransaction(ev *domain.RawPosEvent) *domain.LogicalTransaction {
	tsLocal := ev.DateTime
	if tsLocal == "" {
		tsLocal = c.now().In(c.loc).Format(timeLayout)
	}
	tsUTC := c.toUTC(tsLocal)

	terminal := ev.Terminal
	if terminal == "" {
		terminal = channelTerminal(ev.Channel)
	}
	seq := ev.Sequence
	if seq == "" {
		seq = "0"
	}
	amount := decimal.Zero
	if ev.Amount != "" {
		if v, err := decimal.NewFromString(ev.Amount.String()); err == nil {
			amount = v
		}
	}

	return &domain.LogicalTransaction{
		GUID:         domain.DeriveGUID(c.cfg.StoreID, terminal, seq, tsUTC),
		Seq:          seq,
		Channel:      ev.Channel,
		Type:         "cash-operation",
		Operation:    strings.ToLower(ev.CMD),
		Amount:       amount,
		Store:        c.cfg.StoreID,
		LocationDesc: c.cfg.LocationDesc,
		Terminal:     terminal,
		EmployeeID:   orDefault(ev.Operator, c.cfg.DefaultEmployeeID),
		EmployeeName: orDefault(ev.Operator, c.cfg.DefaultEmployeeName),
		TsLocal:      tsLocal,
		TsUTC:        tsUTC,
		Summary:      map[string]decimal.Decimal{},
	}
}

// toUTC normaliza un timestamp local al formato fijo en UTC. Timestamps
// ilegibles o anteriores a 2023 (relojes de POS desconfigurados) se
// reemplazan por ahora.
func (c *Correlator) toUTC(tsLocal string) string {
	dt, err := time.ParseInLocation(timeLayout, tsLocal, c.loc)
	if err != nil || dt.Year() < 2023 {
		return c.now().UTC().Format(timeLayout)
	}
	return dt.UTC().Format(timeLayout)
}

// parseDollar convierte "$1,234.56" a decimal. Entradas sin monto (texto
// informativo del summary) retornan ok=false.
func parseDollar(details string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(details)
	if s == "" || !strings.ContainsAny(s, "$0123456789") {
		return decimal.Decimal{}, false
	}
	neg := strings.HasPrefix(s, "-") || strings.HasPrefix(s, "($")
	s = strings.NewReplacer("$", "", ",", "", "(", "", ")", "", "-", "").Replace(s)
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func channelTerminal(channel string) string {
	if channel == "" {
		return "0"
	}
	return channel[len(channel)-1:]
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
