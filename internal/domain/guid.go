package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// DeriveGUID genera un GUID determinístico (uuid v5 sobre NAMESPACE_URL)
// a partir de store+terminal+secuencia+timestamp UTC. Mismo input, mismo
// GUID: eso es lo que permite deduplicar reenvíos.
func DeriveGUID(store, terminal, seq, tsUTC string) string {
	name := fmt.Sprintf("%s-%s-%s-%s", store, terminal, seq, tsUTC)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
