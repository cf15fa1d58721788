// Package ingest lee los canales del POS línea por línea y alimenta el
// correlator. Cada canal corre en su propia goroutine bajo un errgroup;
// un canal caído se reconecta solo sin tumbar al resto.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/posbridge/internal/correlate"
	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/dropDatabas3/posbridge/internal/metrics"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
)

// Source es un canal de eventos: un device serial expuesto como archivo,
// un FIFO, o un archivo plano en tests y replays.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource abre un path del filesystem. Sirve igual para /dev/ttyUSB0
// (con el baud ya configurado vía stty) que para un capture de replay.
type FileSource struct {
	name string
	path string
}

func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (f *FileSource) Name() string { return f.name }

func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Submitter recibe las transacciones completadas. Lo implementa el pool.
type Submitter interface {
	Submit(tx *domain.LogicalTransaction)
}

// Listener supervisa N sources contra un correlator compartido.
type Listener struct {
	corr      *correlate.Correlator
	sink      Submitter
	reconnect time.Duration
	log       *zap.Logger
}

func NewListener(corr *correlate.Correlator, sink Submitter) *Listener {
	return &Listener{
		corr:      corr,
		sink:      sink,
		reconnect: 2 * time.Second,
		log:       logger.Named("ingest"),
	}
}

// Run bloquea hasta que el contexto se cancele. Los sources que terminan
// en EOF o error se reabren tras una pausa fija.
func (l *Listener) Run(ctx context.Context, sources []Source) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			return l.watch(ctx, src)
		})
	}
	return g.Wait()
}

// ConsumeOnce lee el source hasta EOF una sola vez, sin reconexión.
// Es el camino del replay (subcomando send).
func (l *Listener) ConsumeOnce(ctx context.Context, src Source) error {
	return l.consume(ctx, src)
}

func (l *Listener) watch(ctx context.Context, src Source) error {
	for {
		if err := l.consume(ctx, src); err != nil {
			l.log.Warn("channel closed, reconnecting",
				logger.Channel(src.Name()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnect):
		}
	}
}

// consume lee el source hasta EOF o error. Una línea malformada se loggea
// y se descarta: el stream sigue.
func (l *Listener) consume(ctx context.Context, src Source) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		l.handleLine(src.Name(), line)
	}
	return sc.Err()
}

func (l *Listener) handleLine(channel string, line []byte) {
	ev := &domain.RawPosEvent{Channel: channel, Received: time.Now().UTC()}
	if err := json.Unmarshal(line, ev); err != nil {
		l.log.Warn("malformed event dropped",
			logger.Channel(channel), zap.Error(err), zap.Int("bytes", len(line)))
		return
	}
	metrics.EventsIngested.WithLabelValues(channel).Inc()

	tx, err := l.corr.Ingest(ev)
	if err != nil {
		l.log.Warn("event rejected", logger.Channel(channel), zap.Error(err))
		return
	}
	if tx != nil {
		l.sink.Submit(tx)
	}
}
