package infra

import (
	"net/http"
	"strings"
)

// Métodos aceitos como rótulo; qualquer outro vira "OTHER".
var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
	http.MethodConnect: {},
	http.MethodTrace:   {},
}

// routeLabel reduz método e path a um rótulo de cardinalidade limitada:
// o conjunto de saídas possíveis é fixo para uma dada lista de prefixos.
func routeLabel(method, path string, prefixes []string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	if _, ok := knownMethods[m]; !ok {
		m = "OTHER"
	}
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return m + " " + p
		}
	}
	return m
}

func cleanRoutePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" || !strings.HasPrefix(p, "/") {
			continue
		}
		out = append(out, p)
	}
	return out
}
