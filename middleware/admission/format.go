// utilitário pequeno para formatação de valores numéricos em headers.
//    Padroniza a formatação (strconv), sem notação científica para valores comuns.

package admission

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// formatSeconds arredonda para cima: Retry-After nunca pode ser 0 quando há espera.
func formatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return strconv.FormatInt(secs, 10)
}
