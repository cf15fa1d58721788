package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/dropDatabas3/posbridge/internal/util/atomicwrite"
)

// FS archiva en disco:
//
//	<dir>/events/<seq>_<guid>.json                          al completarse
//	<dir>/transactions/YYYY/MM/DD/sent/<seq>_<guid>.json    envío OK
//	<dir>/transactions/YYYY/MM/DD/failed/<seq>_<guid>.json  envío fallido
type FS struct {
	dir string
}

func NewFS(dir string) *FS {
	return &FS{dir: dir}
}

type fsRecord struct {
	Transaction *domain.LogicalTransaction `json:"transaction"`
	Payload     json.RawMessage            `json:"payload,omitempty"`
	Result      *Result                    `json:"result,omitempty"`
}

func (f *FS) SaveEvent(ctx context.Context, tx *domain.LogicalTransaction) error {
	b, err := json.MarshalIndent(fsRecord{Transaction: tx}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(f.dir, "events", fileName(tx))
	if err := atomicwrite.AtomicWriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (f *FS) SaveResult(ctx context.Context, tx *domain.LogicalTransaction, payloadJSON []byte, res Result) error {
	rec := fsRecord{Transaction: tx, Payload: payloadJSON, Result: &res}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	outcome := "failed"
	if res.Sent {
		outcome = "sent"
	}
	y, m, d := dateParts(tx.TsUTC)
	path := filepath.Join(f.dir, "transactions", y, m, d, outcome, fileName(tx))
	if err := atomicwrite.AtomicWriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func (f *FS) Close() error { return nil }

func fileName(tx *domain.LogicalTransaction) string {
	return fmt.Sprintf("%s_%s.json", tx.Seq, tx.GUID)
}

func dateParts(tsUTC string) (y, m, d string) {
	if len(tsUTC) >= 10 {
		parts := strings.SplitN(tsUTC[:10], "-", 3)
		if len(parts) == 3 {
			return parts[0], parts[1], parts[2]
		}
	}
	return "0000", "00", "00"
}
